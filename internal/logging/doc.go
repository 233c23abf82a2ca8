// Package logging provides structured logging for observerd.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic context fields (trace_id, user.id, session.id, doc.id)
//   - Redaction of typed text and credentials
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithUserID(ctx, "u-42")
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "event reduced", zap.String("reducer", id))
//
// # Redaction
//
// Reducer internal state can hold raw text a student typed. Fields named
// value, text, comment_text or last_input are always redacted at the encoder,
// next to the usual credential names.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "session opened")
//	tl.AssertLogged(t, zapcore.InfoLevel, "session opened")
//	tl.AssertNoSecrets(t)
package logging
