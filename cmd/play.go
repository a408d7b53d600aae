package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/core/playback"
	"StemDeck/model"

	"github.com/spf13/cobra"
)

var playSeek time.Duration

var playCmd = &cobra.Command{
	Use:   "play <track> [stem...]",
	Short: "播放歌曲的音轨",
	Long: `同步播放一首歌曲的音轨。不指定音轨时播放除原曲外的全部音轨，
指定时只播放匹配的音轨（如 vocals、drums）。Ctrl-C 停止播放。`,
	Args: cobra.MinimumNArgs(1),
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

		if len(args) == 1 {
			err = a.session.PlayTrack(cmd.Context(), t.ID)
		} else {
			err = playLayers(cmd.Context(), a, t, args[1:])
		}
		if err != nil {
			return fmt.Errorf("%s", apperr.UserMessage(err))
		}

		snap := a.player.Snapshot()
		if len(snap.Playing) == 0 {
			return fmt.Errorf("nothing to play in %q", t.Title)
		}
		if playSeek > 0 {
			for _, key := range snap.Playing {
				if err := a.player.Seek(key, playSeek); err != nil {
					return err
				}
			}
		}

		fmt.Printf("Playing %s (%d channels)\n", t.Title, len(snap.Playing))
		waitForPlayback(cmd.Context(), a.player)
		fmt.Println()
		return nil
	},
}

func playLayers(ctx context.Context, a *app, t model.Track, fragments []string) error {
	var files []string
	for _, fragment := range fragments {
		layer, ok := model.FindLayer(t.Layers, fragment)
		if !ok {
			return apperr.Message(apperr.NoPlayableSource, fmt.Sprintf("No %s layer in %q", fragment, t.Title))
		}
		files = append(files, layer.File)
	}
	for _, file := range files {
		// Play 会切换已有的通道，重复的音轨只播放一次
		if a.player.State(playback.Key{TrackID: t.ID, Filename: file}) == playback.Playing {
			continue
		}
		if err := a.session.PlayFile(ctx, t.ID, file); err != nil {
			return err
		}
	}
	return nil
}

// waitForPlayback prints progress until every channel ends or ctx is done.
func waitForPlayback(ctx context.Context, player *playback.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.StopAll()
			return
		case <-ticker.C:
			snap := player.Snapshot()
			if len(snap.Playing) == 0 {
				return
			}
			fmt.Printf("\r%s", progressLine(snap))
		}
	}
}

func progressLine(snap playback.Snapshot) string {
	key := snap.Playing[0]
	pos := snap.Times[key].Truncate(time.Second)
	line := pos.String()
	if d, ok := snap.Durations[key]; ok && d > 0 {
		line += " / " + d.Truncate(time.Second).String()
	}
	names := make([]string, 0, len(snap.Playing))
	for _, k := range snap.Playing {
		names = append(names, model.BaseName(k.Filename))
	}
	return fmt.Sprintf("%-20s %s", line, strings.Join(names, ", "))
}

func init() {
	playCmd.Flags().DurationVar(&playSeek, "seek", 0, "从指定位置开始播放，如 1m30s")
	rootCmd.AddCommand(playCmd)
}
