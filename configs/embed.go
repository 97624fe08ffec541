package configs

import _ "embed"

// Example is the annotated default configuration printed by
// "termcore config".
//
//go:embed termcore.yaml
var Example []byte
