// Claimforge checks medical claims against the CMS NCCI regulatory edits.
//
// It downloads the quarterly Procedure-to-Procedure, Medically Unlikely and
// Add-On Code distributions, normalizes them into a local rule store and
// validates claims against that snapshot.
//
// Usage:
//
//	# Build the rule store from the configured CMS sources
//	claimforge build
//
//	# Rebuild only the MUE table
//	claimforge build --kinds mue
//
//	# Validate a claim
//	claimforge validate --cpt 99213 --cpt 99214 --icd E11.9 --modifier 25
//
//	# Validate claims from a JSON file
//	claimforge validate --file claims.json
//
//	# Show what the store holds
//	claimforge status
//
//	# Serve health probes and metrics, refreshing on a schedule
//	claimforge serve --config claimforge.yaml
package main

func main() {
	Execute()
}
