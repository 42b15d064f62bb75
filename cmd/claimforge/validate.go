package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/rules"
	"claimforge/compliance/pkg/telemetry/logging"
)

var (
	validateCPT          []string
	validateICD          []string
	validateModifiers    []string
	validatePOS          string
	validateProviderType string
	validateUnits        []string
	validateDOS          string
	validateFile         string
	validateClaimID      string
	validateEnsureReady  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a claim against the rule store",
	Long: `Check a claim's procedure and diagnosis codes against the PTP, MUE and
add-on code edits in the rule store. Claims are given with flags or as a
JSON file holding one claim object or an array of them.

The exit status is 2 when any claim has errors.`,
	Example: `  claimforge validate --cpt 99213 --cpt 99214 --icd E11.9 --modifier 25
  claimforge validate --cpt 97110 --units 97110=6 --dos 2026-02-01
  claimforge validate --file claims.json -o text`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringSliceVar(&validateCPT, "cpt", nil, "procedure (CPT/HCPCS) codes; repeat or comma-separate")
	f.StringSliceVar(&validateICD, "icd", nil, "ICD-10-CM diagnosis codes")
	f.StringSliceVar(&validateModifiers, "modifier", nil, "claim-level modifiers")
	f.StringVar(&validatePOS, "pos", "", "place of service code")
	f.StringVar(&validateProviderType, "provider-type", "", "provider type scoping PTP and MUE rows (practitioner, hospital, ...)")
	f.StringSliceVar(&validateUnits, "units", nil, "billed units as CODE=N")
	f.StringVar(&validateDOS, "dos", "", "date of service (YYYY-MM-DD)")
	f.StringVarP(&validateFile, "file", "f", "", "JSON file with a claim or an array of claims")
	f.StringVar(&validateClaimID, "claim-id", "", "claim identifier for log correlation")
	f.BoolVar(&validateEnsureReady, "ensure-ready", false, "build the rule store first if it is empty")
	rootCmd.AddCommand(validateCmd)
}

// claimOutcome pairs a claim ID with its validation result.
type claimOutcome struct {
	ClaimID string        `json:"claim_id,omitempty"`
	Result  *rules.Result `json:"result"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	claims, err := collectClaims()
	if err != nil {
		return err
	}

	// Validation results are structured, so JSON is the default here.
	out := format
	if !cmd.Flags().Changed("output") {
		out = cli.FormatJSON
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if validateEnsureReady {
		if _, err := a.gate.EnsureReady(ctx); err != nil {
			return cli.NewCommandError("validate", err)
		}
	}

	outcomes := make([]claimOutcome, 0, len(claims))
	invalid := false
	for _, claim := range claims {
		res, err := a.validator.Validate(logging.WithClaimID(ctx, claim.ID), claim)
		if err != nil {
			return cli.NewCommandError("validate", storeHint(err))
		}
		invalid = invalid || !res.IsValid
		outcomes = append(outcomes, claimOutcome{ClaimID: claim.ID, Result: res})
	}

	var data any = outcomes
	if len(outcomes) == 1 && validateFile == "" {
		data = outcomes[0].Result
	}
	if err := render(cmd.OutOrStdout(), out, data, findingTable(outcomes)); err != nil {
		return err
	}

	if invalid {
		return &cli.ExitError{Code: cli.ExitInvalid}
	}
	return nil
}

// collectClaims reads claims from --file or assembles one from flags.
func collectClaims() ([]rules.Claim, error) {
	if validateFile != "" {
		if len(validateCPT) > 0 || len(validateICD) > 0 {
			return nil, cli.NewConfigError("--file", "cannot be combined with --cpt or --icd")
		}
		data, err := os.ReadFile(validateFile)
		if err != nil {
			return nil, fmt.Errorf("reading claims: %w", err)
		}
		return parseClaims(data)
	}

	if len(validateCPT) == 0 {
		return nil, cli.NewConfigError("--cpt", "at least one procedure code is required")
	}
	units, err := parseUnits(validateUnits)
	if err != nil {
		return nil, err
	}
	return []rules.Claim{{
		ID:             validateClaimID,
		ProcedureCodes: validateCPT,
		DiagnosisCodes: validateICD,
		Modifiers:      validateModifiers,
		PlaceOfService: validatePOS,
		ProviderType:   validateProviderType,
		Units:          units,
		DateOfService:  validateDOS,
	}}, nil
}

// parseClaims decodes a single claim object or an array of claims.
func parseClaims(data []byte) ([]rules.Claim, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("claims file is empty")
	}

	var claims []rules.Claim
	if data[0] == '[' {
		if err := json.Unmarshal(data, &claims); err != nil {
			return nil, fmt.Errorf("decoding claims: %w", err)
		}
	} else {
		var c rules.Claim
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decoding claim: %w", err)
		}
		claims = append(claims, c)
	}
	if len(claims) == 0 {
		return nil, fmt.Errorf("claims file holds no claims")
	}
	return claims, nil
}

// parseUnits parses CODE=N pairs. Codes are uppercased.
func parseUnits(pairs []string) (map[string]int, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	units := make(map[string]int, len(pairs))
	for _, p := range pairs {
		code, n, ok := strings.Cut(p, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, cli.NewConfigError("--units", fmt.Sprintf("%q is not CODE=N", p))
		}
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || v < 0 {
			return nil, cli.NewConfigError("--units", fmt.Sprintf("%q: units must be a non-negative integer", p))
		}
		units[code] = v
	}
	return units, nil
}

// findingTable renders one row per finding, with a summary row per claim.
type findingTable []claimOutcome

func (t findingTable) Header() []string {
	return []string{"claim", "severity", "kind", "message"}
}

func (t findingTable) Rows() [][]string {
	var rows [][]string
	for i, o := range t {
		id := o.ClaimID
		if id == "" {
			id = "#" + strconv.Itoa(i+1)
		}
		for _, f := range o.Result.Findings() {
			rows = append(rows, []string{id, string(f.Severity), string(f.Kind), f.Message})
		}
		rows = append(rows, []string{id, "summary", "-",
			fmt.Sprintf("valid=%t risk_score=%d", o.Result.IsValid, o.Result.RiskScore)})
	}
	return rows
}
