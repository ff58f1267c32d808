package rules

import _ "embed"

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string
