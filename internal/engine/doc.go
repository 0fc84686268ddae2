// Package engine executes run plans.
//
// The Executor walks a plan.RunPlan strictly in order and writes the run's
// artifact tree as it goes:
//
//	plan.json, sysinfo.json, safety_policy.json  before anything runs
//	summary.json                                 initially, then after every sub-run
//	subruns/<id>/steps.ldjson                    start/end event per invocation
//	subruns/<id>/{stdout,stderr}/*.log           one capture pair per invocation
//	subruns/<id>/summary.json                    when the sub-run settles
//
// Each sub-run is a small state machine, PENDING to PASS or FAIL. Recording a
// failed step result moves it to FAIL and yields Abort, which skips the rest
// of that sub-run only. Adapter failures are data in the summary, never
// errors from Execute.
//
// There is one goroutine of control. The only blocking call is the adapter
// subprocess, which has no timeout.
package engine
