// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/zapblob/pkg/blobclient"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	putCmd.Flags().String("csek", "", "Customer-supplied key, base64 (32 bytes)")
	putCmd.Flags().String("kms-key", "", "Customer-managed key resource name")
	putCmd.Flags().Int64("if-generation-match", 0, "Require current generation to match")
	getCmd.Flags().String("csek", "", "Customer-supplied key, base64 (32 bytes)")
	getCmd.Flags().Int64("generation", 0, "Read a specific generation")
	rmCmd.Flags().Int64("if-generation-match", 0, "Require current generation to match")
	lsCmd.Flags().String("prefix", "", "List only objects whose name starts with this prefix")

	rootCmd.AddCommand(putCmd, getCmd, statCmd, rmCmd, lsCmd)
}

// csekFromFlag decodes the --csek flag into a CustomerKey, or nil when unset.
func csekFromFlag(cmd *cobra.Command) (*blobclient.CustomerKey, error) {
	encoded, _ := cmd.Flags().GetString("csek")
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid --csek: %w", err)
	}
	return blobclient.NewCustomerKey(raw)
}

// generationMatchFromFlag returns the --if-generation-match value, or nil
// when the flag was not given.
func generationMatchFromFlag(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("if-generation-match") {
		return nil
	}
	v, _ := cmd.Flags().GetInt64("if-generation-match")
	return &v
}

var putCmd = &cobra.Command{
	Use:   "put <bucket> <object> <file>",
	Short: "Upload a file as an object",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		csek, err := csekFromFlag(cmd)
		if err != nil {
			return err
		}
		kmsKey, _ := cmd.Flags().GetString("kms-key")

		info, err := client.UploadObject(cmd.Context(), args[0], args[1], data, &blobclient.UploadOptions{
			CustomerKey:       csek,
			KMSKeyName:        kmsKey,
			IfGenerationMatch: generationMatchFromFlag(cmd),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Uploaded %s/%s (%s, generation %d)\n",
			info.Bucket, info.Name, humanize.IBytes(uint64(info.Size)), info.Generation)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <bucket> <object>",
	Short: "Download an object to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		csek, err := csekFromFlag(cmd)
		if err != nil {
			return err
		}
		generation, _ := cmd.Flags().GetInt64("generation")

		data, err := client.DownloadObject(cmd.Context(), args[0], args[1], &blobclient.DownloadOptions{
			CustomerKey: csek,
			Generation:  generation,
		})
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <bucket> <object>",
	Short: "Print object metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.GetObjectMetadata(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("Bucket:         %s\n", info.Bucket)
		fmt.Printf("Name:           %s\n", info.Name)
		fmt.Printf("Size:           %s (%d bytes)\n", humanize.IBytes(uint64(info.Size)), info.Size)
		fmt.Printf("Generation:     %d\n", info.Generation)
		fmt.Printf("Metageneration: %d\n", info.Metageneration)
		fmt.Printf("ETag:           %s\n", info.ETag)
		fmt.Printf("Checksum:       %s\n", info.Checksum)
		fmt.Printf("Updated:        %s\n", time.Unix(info.UpdatedAt, 0).UTC().Format(time.RFC3339))
		if info.HasKMSKey() {
			fmt.Printf("KMS key:        %s\n", info.KMSKeyName)
		}
		if info.HasCustomerKey() {
			fmt.Printf("CSEK SHA-256:   %s\n", info.CustomerKeySHA256)
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <bucket>",
	Short: "List objects in a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		prefix, _ := cmd.Flags().GetString("prefix")
		items, err := client.ListObjects(cmd.Context(), args[0], &blobclient.ListOptions{Prefix: prefix})
		if err != nil {
			return err
		}

		for _, info := range items {
			key := "-"
			switch {
			case info.HasKMSKey():
				key = "kms"
			case info.HasCustomerKey():
				key = "csek"
			}
			fmt.Printf("%12s  gen %-4d  %-4s  %s\n",
				humanize.IBytes(uint64(info.Size)), info.Generation, key, info.Name)
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <bucket> <object>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		return client.DeleteObject(cmd.Context(), args[0], args[1], &blobclient.DeleteOptions{
			IfGenerationMatch: generationMatchFromFlag(cmd),
		})
	},
}
