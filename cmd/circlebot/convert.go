package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prilive-com/circlebot/internal/pngmeta"
	"github.com/prilive-com/circlebot/pipeline"
)

func newConvertCmd(a *app) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "convert <input> <output.png>",
		Short: "Convert a local image or mp4 video into a circular sticker PNG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			kind, mimeType := detectKind(data)
			if kind == pipeline.KindOther {
				return fmt.Errorf("%s: unsupported content type %s", args[0], mimeType)
			}

			p, err := pipeline.New(a.cfg.Pipeline(), pipeline.WithLogger(a.logger))
			if err != nil {
				return err
			}
			out, err := p.Convert(cmd.Context(), kind, pipeline.MediaBlob{Data: data, MIMEType: mimeType})
			if err != nil {
				var se *pipeline.StageError
				if errors.As(err, &se) && se.Diagnostic != "" {
					a.logger.Error("conversion diagnostic", "stage", se.Stage, "stderr", se.Diagnostic)
				}
				return err
			}

			out, err = pngmeta.Insert(out,
				pngmeta.Text{Key: pngmeta.KeyAuthor, Value: strings.TrimSpace(author)},
				pngmeta.Text{Key: pngmeta.KeyTitle, Value: a.cfg.StickerName},
			)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}

			a.logger.Info("sticker written", "path", args[1], "bytes", len(out), "kind", kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Author recorded in the sticker metadata.")
	return cmd
}

// detectKind sniffs data the way the bot trusts declared MIME types: only
// mp4 counts as video.
func detectKind(data []byte) (pipeline.MediaKind, string) {
	mimeType := http.DetectContentType(data)
	base := pipeline.BaseMIME(mimeType)
	switch {
	case base == pipeline.SupportedVideoMIME:
		return pipeline.KindVideo, base
	case strings.HasPrefix(base, "image/"):
		return pipeline.KindImage, base
	default:
		return pipeline.KindOther, base
	}
}
