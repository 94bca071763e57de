package walhist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/storage"
)

func init() {
	// Owner command
	ownerCmd := &cobra.Command{
		Use:     "owner",
		Aliases: []string{"o"},
		Short:   "Manage token wallet owners",
		Long:    `Add, delete, and list the owner names shown for token wallet addresses.`,
		Run:     listOwners,
	}

	// Add subcommand
	addOwnerCmd := &cobra.Command{
		Use:   "add [address] [name]",
		Short: "Name the owner of an address",
		Args:  cobra.ExactArgs(2),
		Run:   addOwner,
	}

	// Delete subcommand
	delOwnerCmd := &cobra.Command{
		Use:   "del [address]",
		Short: "Delete an owner name",
		Args:  cobra.ExactArgs(1),
		Run:   deleteOwner,
	}

	ownerCmd.AddCommand(addOwnerCmd)
	ownerCmd.AddCommand(delOwnerCmd)

	rootCmd.AddCommand(ownerCmd)
}

func addOwner(cmd *cobra.Command, args []string) {
	s := openStorage()

	address, name := args[0], args[1]
	if err := s.AddOwner(address, name); err != nil {
		er(fmt.Sprintf("Failed to add owner: %v", err))
		return
	}

	fmt.Printf("Owner '%s' added successfully\n", name)
}

func deleteOwner(cmd *cobra.Command, args []string) {
	s := openStorage()

	address := args[0]
	if err := s.DeleteOwner(address); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			er(fmt.Sprintf("No owner recorded for %s", address))
			return
		}
		er(fmt.Sprintf("Failed to delete owner: %v", err))
		return
	}

	fmt.Printf("Owner of %s deleted successfully\n", address)
}

func listOwners(cmd *cobra.Command, args []string) {
	s := openStorage()

	owners := s.Owners()
	if len(owners) == 0 {
		fmt.Println("No owners found")
		return
	}

	addresses := make([]string, 0, len(owners))
	for address := range owners {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	fmt.Println("Owners:")
	for _, address := range addresses {
		fmt.Printf("  %s (%s)\n", owners[address], address)
	}
}
