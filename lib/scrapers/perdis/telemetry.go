package perdis

import "perdisweb-backend/lib/telemetry"

var tracer = telemetry.Tracer("perdisweb.lib.scrapers.perdis")
