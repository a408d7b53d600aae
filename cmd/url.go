package cmd

import (
	"fmt"

	"StemDeck/core/apperr"
	"StemDeck/model"

	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url <track> [stem]",
	Short: "获取音轨的播放地址",
	Long: `为已保存的歌曲生成短期有效的播放地址。配置了 MinIO 时直接签名，
否则通过后端 /presigned-url 获取。不指定音轨时列出全部音轨的地址。`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		t, err := findTrack(a.lib, args[0])
		if err != nil {
			return err
		}

		layers := t.Layers
		if len(args) == 2 {
			layer, ok := model.FindLayer(t.Layers, args[1])
			if !ok {
				return fmt.Errorf("No %s layer in %q", args[1], t.Title)
			}
			layers = []model.Layer{layer}
		}

		for _, l := range layers {
			var u string
			switch {
			case t.RemoteID != "":
				u, err = a.lib.ResolvePlayableURL(cmd.Context(), t.RemoteID, l.File)
				if err != nil {
					return fmt.Errorf("%s", apperr.UserMessage(err))
				}
			case t.CacheKey != "":
				u = a.client.CacheFileURL(t.CacheKey, l.File)
			default:
				return fmt.Errorf("%q only exists in this session", t.Title)
			}
			fmt.Printf("%-14s %s\n", l.DisplayName, u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
