// Package errors classifies failures for the graph sync engine.
//
// Every component wraps errors with the "component.method: action failed"
// pattern via Wrap, WrapTransient, WrapInvalid or WrapFatal:
//
//	if err := source.PushTriple(ctx, t); err != nil {
//		return errs.WrapTransient(err, "syncworker", "SaveTriple", "push triple")
//	}
//
// The class travels with the error into SYNC_ERROR, SAVE_ERROR and
// DELETE_ERROR events so a host can tell a flaky network from a rejected
// payload. Not-found and remote-deleted are not errors and never reach here.
package errors
