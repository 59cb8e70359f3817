// Package logging provides structured logging on top of log/slog.
//
// A Logger picks a JSON or text handler from Config, parses the level and
// can redact e-mail addresses, phone numbers and custom patterns from
// string attributes. Its handler appends the request, proposal, actor and
// step IDs stored in a context, so any slog call that passes a context
// carries them:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithProposalID(ctx, p.ID)
//	slog.InfoContext(ctx, "proposal routed", "steps", 3)
//	// {"level":"INFO","msg":"proposal routed","steps":3,"proposal_id":"..."}
package logging
