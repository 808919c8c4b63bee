// Package logging provides zerolog setup and context helpers shared by every
// lcamatch component.
//
// Loggers travel through context.Context. Call sites fetch them with
// FromContext and tag each event with a component and an operation:
//
//	log := logging.FromContext(ctx)
//	log.Debug().Ctx(ctx).
//	    Str("component", "matcher").
//	    Str("operation", "apply_match").
//	    Msg("match applied")
//
// Passing the context through Ctx lets the trace hook attach the request's
// trace id, so all events produced while serving one request correlate.
package logging
