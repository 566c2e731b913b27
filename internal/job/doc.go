// Package job owns the lifecycle of invocations of the external
// text-generation tool.
//
// A Controller tracks at most one active job at a time. Asynchronous
// jobs stream their outcome into a host-provided Sink while a progress
// ticker animates a status line; synchronous jobs block the caller and
// hand the result to an insertion sink instead. All sink mutation is
// serialized on a dedicated lock, separate from the lifecycle state
// lock: hosts never observe concurrent writes, and a sink that blocks
// (a busy UI loop) cannot stall Stop or state queries.
//
// Starting a job while another is active does not stop the old one: the
// tracked handle is overwritten and the previous process is orphaned.
// Its completion is detected and ignored. This mirrors the observed
// behavior of the original front end and is a documented limitation;
// the policy is isolated in a single decision point so it can be
// hardened later.
package job
