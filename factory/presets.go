package factory

import "fmt"

// =============================================================================
// PRESET DOCUMENTS - Used by demo scenarios and tests
// =============================================================================

// FlatReferenceJSON returns a single-group document where every amount below
// one million carries groupRate at group level and globalRate globally.
func FlatReferenceJSON(groupRate, globalRate string) string {
	return fmt.Sprintf(`{
  "global": [{"minimum": "0", "maximum": "1000000", "rate": %q}],
  "groups": [
    {"id": 1, "name": "General", "brackets": [{"minimum": "0", "maximum": "1000000", "rate": %q}]}
  ],
  "categories": [
    {"id": 1, "name": "Miscellaneous", "group_id": 1}
  ]
}`, globalRate, groupRate)
}

// TieredReferenceYAML is a two-group catalogue with volume discounts.
// Services has no table of its own and always resolves to rate 0.
const TieredReferenceYAML = `
global:
  - {minimum: "0",      maximum: "5000",    rate: "0.10"}
  - {minimum: "5000",   maximum: "50000",   rate: "0.06"}
  - {minimum: "50000",  maximum: "1000000", rate: "0.03"}
groups:
  - id: 1
    name: Hardware
    brackets:
      - {minimum: "0",     maximum: "1000",    rate: "0.25"}
      - {minimum: "1000",  maximum: "10000",   rate: "0.15"}
      - {minimum: "10000", maximum: "1000000", rate: "0.08"}
  - id: 2
    name: Services
  - id: 3
    name: Clearance
    brackets:
      - {minimum: "0", maximum: "1000000", rate: "-0.10"}
categories:
  - {id: 10, name: Cables,       group_id: 1}
  - {id: 11, name: Switches,     group_id: 1}
  - {id: 20, name: Installation, group_id: 2}
  - {id: 30, name: End of line,  group_id: 3}
`
