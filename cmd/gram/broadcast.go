package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/broadcast"
	"github.com/untoldecay/gram/internal/config"
	"github.com/untoldecay/gram/internal/graph"
)

var broadcastCmd = &cobra.Command{
	Use:     "broadcast",
	GroupID: "ops",
	Short:   "Publish and follow subtrees over the external relay (spec.md §6.2)",
}

func relayClient() (*broadcast.Client, error) {
	endpoint := config.GetString("broadcast.relay")
	if endpoint == "" {
		return nil, fmt.Errorf("no relay configured: set broadcast.relay in .gram/config.yaml or GRAM_BROADCAST_RELAY")
	}
	return broadcast.NewClient(endpoint), nil
}

var broadcastPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish (or republish changes to) the subtree rooted at id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		client, err := relayClient()
		if err != nil {
			return err
		}
		tx := cmdCtx.DB.Begin()
		if err := broadcast.New(client, tx).PublishBroadcast(context.Background(), id); err != nil {
			tx.Abort()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		readTx := cmdCtx.DB.Begin()
		defer readTx.Abort()
		owned, ok, err := readTx.Store().GetOwnedBroadcast(id)
		if err != nil {
			return err
		}
		if ok {
			fmt.Println(owned.BroadcastId.String())
		}
		return nil
	},
}

var broadcastSubscribeCmd = &cobra.Command{
	Use:   "subscribe <broadcast-id>",
	Short: "Subscribe to a broadcast, fetching its initial content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bid, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid broadcast id: %w", err)
		}
		client, err := relayClient()
		if err != nil {
			return err
		}
		tx := cmdCtx.DB.Begin()
		namespace, err := broadcast.New(client, tx).SubscribeToBroadcast(context.Background(), bid)
		if err != nil {
			tx.Abort()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Println(namespace.String())
		return nil
	},
}

var broadcastFetchCmd = &cobra.Command{
	Use:   "fetch <broadcast-id>",
	Short: "Pull any episodes newer than the last fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bid, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid broadcast id: %w", err)
		}
		client, err := relayClient()
		if err != nil {
			return err
		}
		tx := cmdCtx.DB.Begin()
		namespace, err := broadcast.New(client, tx).FetchBroadcast(context.Background(), bid)
		if err != nil {
			tx.Abort()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Println(namespace.String())
		return nil
	},
}

var broadcastLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List broadcasts owned by this instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx := cmdCtx.DB.Begin()
		defer tx.Abort()
		for _, root := range tx.Store().ListOwnedBroadcastIds() {
			owned, ok, err := tx.Store().GetOwnedBroadcast(root)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("owned\t%s\t%s\n", owned.BroadcastId, root)
			}
		}
		return nil
	},
}

func init() {
	broadcastCmd.AddCommand(broadcastPublishCmd, broadcastSubscribeCmd, broadcastFetchCmd, broadcastLsCmd)
	rootCmd.AddCommand(broadcastCmd)
}
