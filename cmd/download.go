package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StemDeck/core/apperr"
	"StemDeck/logger"

	"github.com/spf13/cobra"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <track>",
	Short: "下载歌曲的音轨压缩包",
	Long:  `把一首歌曲的全部音轨打包下载为 zip。Ctrl-C 取消下载并删除未完成的文件。`,
	Args:  cobra.ExactArgs(1),
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

		out := downloadOutput
		if out == "" {
			out = archiveName(t.Title)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create archive file: %w", err)
		}

		// 只有 d.Cancel 能中断下载
		d, err := a.lib.DownloadArchive(context.WithoutCancel(cmd.Context()), t.ID, f)
		if err != nil {
			f.Close()
			os.Remove(out)
			return err
		}

		fmt.Printf("Downloading %s -> %s\n", t.Title, out)
		select {
		case <-d.Done():
		case <-cmd.Context().Done():
			d.Cancel()
		}
		werr := d.Wait()
		if cerr := f.Close(); cerr != nil && werr == nil {
			werr = cerr
		}

		if d.Cancelled() || werr != nil {
			if err := os.Remove(out); err != nil {
				logger.Warn("failed to remove partial archive", logger.String("path", out), logger.ErrorField(err))
			}
		}
		switch {
		case d.Cancelled():
			fmt.Println("Download cancelled")
			return nil
		case werr != nil:
			return fmt.Errorf("%s", apperr.UserMessage(werr))
		}
		fmt.Printf("Downloaded %d bytes\n", d.Written())
		return nil
	},
}

// archiveName turns a title into a safe file name.
func archiveName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "stems"
	}
	return filepath.Clean(name + ".zip")
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "输出文件，默认为 <标题>.zip")
	rootCmd.AddCommand(downloadCmd)
}
