package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"StemDeck/model"
	"StemDeck/storage"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var storeCheck bool

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "查看本地音轨库缓存",
	Long:  `打印持久化存储中的音轨库缓存原文。--check 测试存储连接并进行基本读写操作。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Store driver: %s, key: %s\n", cfg.StoreDriver, cfg.StoreKey)

		kv, err := storage.Open(cfg)
		if err != nil {
			log.Fatalf("cannot open store: %v", err)
		}
		defer func() {
			if err := kv.Close(); err != nil {
				log.Printf("error closing store: %v", err)
			}
		}()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if storeCheck {
			fmt.Println("Checking store read/write...")
			if err := checkStore(ctx, kv); err != nil {
				log.Fatalf("store check failed: %v", err)
			}
			fmt.Println("Store check passed")
			return
		}

		raw, err := kv.Get(ctx, cfg.StoreKey)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("Library cache is empty")
			return
		}
		if err != nil {
			log.Fatalf("cannot read library cache: %v", err)
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(raw), "", "  "); err != nil {
			fmt.Println(raw)
		} else {
			fmt.Println(pretty.String())
		}

		tracks, err := model.UnmarshalTracks(raw)
		if err != nil {
			log.Fatalf("library cache is malformed: %v", err)
		}
		fmt.Printf("%d songs\n", len(tracks))
	},
}

// checkStore writes, reads back and deletes a probe key.
func checkStore(ctx context.Context, kv storage.KVStore) error {
	key := cfg.StoreKey + ":probe"
	want := time.Now().Format(time.RFC3339Nano)
	if err := kv.Set(ctx, key, want); err != nil {
		return err
	}
	got, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("read back %q, wrote %q", got, want)
	}
	return kv.Delete(ctx, key)
}

func init() {
	storeCmd.Flags().BoolVar(&storeCheck, "check", false, "测试存储连接")
	rootCmd.AddCommand(storeCmd)
}
