// Package health provides liveness and readiness probes for the claimforge
// ops server.
//
// # Endpoints
//
//   - /healthz: the process is running
//   - /readyz: registered component checks pass
//   - /version: build information
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("rule_store", func(ctx context.Context) error {
//	    ok, err := g.Ready(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        return errors.New("no PTP edits loaded")
//	    }
//	    return nil
//	})
//	health.Mount(mux, checker, 5, version, commit, buildTime)
//
// Critical checks make /readyz return 503. Informational checks only mark
// the service degraded.
package health
