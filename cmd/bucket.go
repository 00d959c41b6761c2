// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	setDefaultKeyCmd.Flags().Bool("await-propagation", false, "Wait for the change to reach object writers")
	clearDefaultKeyCmd.Flags().Bool("await-propagation", false, "Wait for the change to reach object writers")

	defaultKeyCmd.AddCommand(setDefaultKeyCmd, clearDefaultKeyCmd)
	bucketCmd.AddCommand(defaultKeyCmd, bucketShowCmd)
	rootCmd.AddCommand(bucketCmd)
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Bucket configuration commands",
}

var bucketShowCmd = &cobra.Command{
	Use:   "show <bucket>",
	Short: "Print bucket configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.GetBucket(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Bucket:          %s\n", info.Name)
		fmt.Printf("Metageneration:  %d\n", info.Metageneration)
		if info.DefaultKMSKeyName != "" {
			fmt.Printf("Default KMS key: %s\n", info.DefaultKMSKeyName)
		} else {
			fmt.Printf("Default KMS key: (none)\n")
		}
		return nil
	},
}

var defaultKeyCmd = &cobra.Command{
	Use:   "default-key",
	Short: "Manage the bucket's default KMS key",
}

var setDefaultKeyCmd = &cobra.Command{
	Use:   "set <bucket> <key-name>",
	Short: "Set the bucket's default KMS key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		keyName := args[1]
		info, err := client.PatchBucketDefaultKey(cmd.Context(), args[0], &keyName)
		if err != nil {
			return err
		}
		fmt.Printf("Default KMS key for %s set to %s\n", info.Name, info.DefaultKMSKeyName)

		if wait, _ := cmd.Flags().GetBool("await-propagation"); wait {
			if err := client.AwaitConfigPropagation(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Propagation window elapsed")
		}
		return nil
	},
}

var clearDefaultKeyCmd = &cobra.Command{
	Use:   "clear <bucket>",
	Short: "Clear the bucket's default KMS key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.PatchBucketDefaultKey(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		if info.DefaultKMSKeyName != "" {
			return fmt.Errorf("default key still set after clear: %s", info.DefaultKMSKeyName)
		}
		fmt.Printf("Default KMS key for %s cleared\n", info.Name)

		if wait, _ := cmd.Flags().GetBool("await-propagation"); wait {
			if err := client.AwaitConfigPropagation(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Propagation window elapsed")
		}
		return nil
	},
}
