package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StemDeck/core/apperr"
	"StemDeck/core/command"
	"StemDeck/core/library"
	"StemDeck/model"

	"github.com/spf13/cobra"
)

var (
	uploadAcceptTerms bool
	uploadStems       []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file...>",
	Short: "上传歌曲并分离音轨",
	Long: `把音频文件上传到分离服务。--stems 选择要分离的音轨
(vocals, bass, percussion, other, instrumental, original audio)，默认全部。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stems, err := parseStems(uploadStems)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		failed := 0
		for _, path := range args {
			fmt.Printf("Uploading %s ...\n", filepath.Base(path))
			t, err := uploadPath(cmd, a.lib, path, stems)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(path), apperr.UserMessage(err))
				continue
			}
			fmt.Printf("Added %s\n", t.Title)
			printTrack(t)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(args))
		}
		return nil
	},
}

func uploadPath(cmd *cobra.Command, lib *library.Engine, path string, stems []string) (t model.Track, err error) {
	f, err := os.Open(path)
	if err != nil {
		return t, apperr.Wrap(err, apperr.Validation, "cannot read "+filepath.Base(path))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return t, apperr.Wrap(err, apperr.Validation, "cannot read "+filepath.Base(path))
	}
	return lib.AddTrack(cmd.Context(), library.UploadFile{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: f,
	}, uploadAcceptTerms, stems)
}

// parseStems accepts the spoken aliases too ("drums", "voice").
func parseStems(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), command.Stems...), nil
	}
	out := []string{}
	seen := make(map[string]bool)
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			stem, ok := command.NormalizeStem(part)
			if !ok {
				return nil, fmt.Errorf("unknown stem %q", strings.TrimSpace(part))
			}
			if !seen[stem] {
				seen[stem] = true
				out = append(out, stem)
			}
		}
	}
	return out, nil
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadAcceptTerms, "accept-terms", false, "接受服务条款（上传必需）")
	uploadCmd.Flags().StringSliceVar(&uploadStems, "stems", nil, "要分离的音轨，逗号分隔")
	rootCmd.AddCommand(uploadCmd)
}
