package pipeline

import (
	"context"
	"errors"
	"mime"
	"strings"
)

type resolved struct {
	target Message
	blob   MediaBlob
	kind   MediaKind
	noop   NoOpReason
}

// resolve picks the message that carries the media and downloads it.
func (p *Pipeline) resolve(ctx context.Context, runID string, msg Message) (resolved, error) {
	target := msg
	if msg.HasQuoted() {
		q, err := msg.Quoted(ctx)
		if err != nil {
			return resolved{}, stageErr(StageFetch, runID, err)
		}
		target = q
	}
	if target == nil || !target.HasMedia() {
		return resolved{noop: NoOpNoMedia}, nil
	}

	r := resolved{target: target, kind: target.MediaKind()}
	if r.kind != KindImage && r.kind != KindVideo {
		r.noop = NoOpUnsupportedKind
		return r, nil
	}

	dctx, cancel := p.withTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()
	blob, err := target.Download(dctx)
	if err != nil {
		return r, stageErr(StageFetch, runID, err)
	}
	if len(blob.Data) == 0 {
		return r, stageErr(StageFetch, runID, errors.New("empty media"))
	}
	r.blob = blob

	if r.kind == KindVideo && BaseMIME(blob.MIMEType) != SupportedVideoMIME {
		r.noop = NoOpUnsupportedMIME
	}
	return r, nil
}

// BaseMIME returns the lower-cased media type of a MIME string without
// parameters.
func BaseMIME(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
