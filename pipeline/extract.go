package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/prilive-com/circlebot/internal/frame"
	"github.com/prilive-com/circlebot/internal/tempfs"
)

// extract puts a single still image on disk and returns its asset.
func (p *Pipeline) extract(ctx context.Context, scope *tempfs.Scope, kind MediaKind, blob MediaBlob) (*tempfs.Asset, error) {
	runID := scope.RunID()
	input := scope.Allocate(tempfs.KindInput)

	switch kind {
	case KindImage:
		if err := input.Write(blob.Data); err != nil {
			return nil, stageErr(StageWrite, runID, err)
		}
		return input, nil

	case KindVideo:
		video := scope.Allocate(tempfs.KindVideo)
		if err := video.Write(blob.Data); err != nil {
			return nil, stageErr(StageWrite, runID, err)
		}

		err := p.extractor.Extract(ctx, video.Path, input.Path)
		video.MarkConsumed()
		if relErr := scope.Release(video); relErr != nil {
			p.logger.Warn("temp cleanup failed", "run_id", runID, "path", video.Path, "error", relErr)
		}
		if err != nil {
			se := stageErr(StageExtract, runID, err)
			var exitErr *frame.ExitError
			if errors.As(err, &exitErr) {
				se.Diagnostic = exitErr.Stderr
			}
			return nil, se
		}
		input.MarkWritten()
		return input, nil

	default:
		return nil, stageErr(StageExtract, runID, fmt.Errorf("unsupported media kind %q", kind))
	}
}
