// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"docconform/internal/waivers"
)

func main() {
	var (
		waiverFile = flag.String("waiver-file", "", "Path to waiver configuration file (default: .docconform-waivers.yaml)")
		action     = flag.String("action", "", "Action to perform: list, remove, cleanup, enable, disable")
		id         = flag.String("id", "", "Waiver rule ID (for remove and disable actions)")
		hash       = flag.String("hash", "", "Issue fingerprint hash (for enable action)")
		reason     = flag.String("reason", "", "Reason for waiving the issue (for enable action)")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Error: --action is required")
		fmt.Println("Usage: docconform-waive --action <list|remove|cleanup|enable|disable> [options]")
		os.Exit(1)
	}

	manager := waivers.NewManager(*waiverFile)

	switch *action {
	case "list":
		listWaivers(manager)
	case "remove":
		if *id == "" {
			fmt.Println("Error: --id is required for remove action")
			os.Exit(1)
		}
		removeWaiver(manager, *id)
	case "cleanup":
		cleanupExpired(manager)
	case "enable":
		if *hash == "" {
			fmt.Println("Error: --hash is required for enable action")
			os.Exit(1)
		}
		enableWaiver(manager, *hash, *reason)
	case "disable":
		if *id == "" {
			fmt.Println("Error: --id is required for disable action")
			os.Exit(1)
		}
		disableWaiver(manager, *id)
	default:
		fmt.Printf("Error: Unknown action '%s'\n", *action)
		fmt.Println("Valid actions: list, remove, cleanup, enable, disable")
		os.Exit(1)
	}
}

func listWaivers(manager *waivers.Manager) {
	rules := manager.List()
	if len(rules) == 0 {
		fmt.Println("No waiver rules found.")
		return
	}

	fmt.Printf("Found %d waiver rules:\n\n", len(rules))
	for _, rule := range rules {
		fmt.Printf("ID: %s\n", rule.ID)
		fmt.Printf("Hash: %s\n", rule.Hash)
		fmt.Printf("Reason: %s\n", rule.Reason)
		fmt.Printf("Enabled: %t\n", rule.Enabled)
		if rule.CreatedBy != "" {
			fmt.Printf("Created By: %s\n", rule.CreatedBy)
		}
		fmt.Printf("Created At: %s\n", rule.CreatedAt.Format("2006-01-02 15:04:05"))
		if rule.ExpiresAt != nil {
			fmt.Printf("Expires At: %s\n", rule.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
		if len(rule.Metadata) > 0 {
			fmt.Println("Metadata:")
			for k, v := range rule.Metadata {
				fmt.Printf("  %s: %s\n", k, v)
			}
		}
		fmt.Println("---")
	}
}

func removeWaiver(manager *waivers.Manager, id string) {
	if err := manager.Remove(id); err != nil {
		fmt.Printf("Error removing waiver: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully removed waiver rule: %s\n", id)
}

func cleanupExpired(manager *waivers.Manager) {
	removed := manager.CleanupExpired()
	fmt.Printf("Cleaned up %d expired waiver rules\n", removed)
}

func enableWaiver(manager *waivers.Manager, hash, reason string) {
	if err := manager.EnableByHash(hash, reason); err != nil {
		fmt.Printf("Error enabling waiver: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully enabled waiver for hash: %s\n", shortHash(hash))
}

func disableWaiver(manager *waivers.Manager, id string) {
	if err := manager.DisableByID(id); err != nil {
		fmt.Printf("Error disabling waiver: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully disabled waiver rule: %s\n", id)
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
