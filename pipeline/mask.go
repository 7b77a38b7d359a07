package pipeline

import (
	"bytes"

	"github.com/prilive-com/circlebot/circle"
	"github.com/prilive-com/circlebot/internal/tempfs"
)

// mask crops the still to a circle, writes the PNG to the output asset and
// reads it back.
func (p *Pipeline) mask(scope *tempfs.Scope, still *tempfs.Asset) ([]byte, error) {
	runID := scope.RunID()

	data, err := still.Read()
	if err != nil {
		return nil, stageErr(StageDecode, runID, err)
	}
	img, _, err := circle.DecodeLimited(data, p.cfg.MaxPixels)
	if err != nil {
		return nil, stageErr(StageDecode, runID, err)
	}

	var buf bytes.Buffer
	if err := circle.Encode(&buf, circle.Mask(img)); err != nil {
		return nil, stageErr(StageWrite, runID, err)
	}

	output := scope.Allocate(tempfs.KindOutput)
	if err := output.Write(buf.Bytes()); err != nil {
		return nil, stageErr(StageWrite, runID, err)
	}
	out, err := output.Read()
	if err != nil {
		return nil, stageErr(StageWrite, runID, err)
	}
	return out, nil
}
