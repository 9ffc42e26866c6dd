package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/visagevault/internal/facematch"
	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List, inspect and rename people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List people with their face counts",
	Args:  cobra.NoArgs,
	RunE:  runPeopleList,
}

var peopleShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show the faces labeled with a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleShow,
}

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <id|name> <new name>...",
	Short: "Change the display name of a person",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPeopleRename,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd, peopleShowCmd, peopleRenameCmd)
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.Catalog.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list people: %w", err)
	}
	if len(identities) == 0 {
		fmt.Println("No people yet. Label faces with \"visagevault cluster\".")
		return nil
	}

	fmt.Printf("%-6s %-40s %s\n", "ID", "NAME", "FACES")
	for _, i := range identities {
		fmt.Printf("%-6d %-40s %d\n", i.ID, i.Name, i.FaceCount)
	}
	return nil
}

func runPeopleShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := lookupIdentity(ctx, a.Catalog, args[0])
	if err != nil {
		return err
	}
	faces, err := a.Catalog.FacesByIdentity(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to load faces: %w", err)
	}

	fmt.Printf("%s (#%d): %d face(s)\n", identity.Name, identity.ID, len(faces))
	for _, f := range faces {
		fmt.Printf("  face %-6d %s\n", f.ID, f.AssetPath)
	}
	return nil
}

func runPeopleRename(cmd *cobra.Command, args []string) error {
	name := facematch.CleanDisplayName(strings.Join(args[1:], " "))

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := lookupIdentity(ctx, a.Catalog, args[0])
	if err != nil {
		return err
	}
	if err := a.Catalog.RenameIdentity(ctx, identity.ID, name); err != nil {
		return fmt.Errorf("failed to rename %s: %w", identity.Name, err)
	}
	fmt.Printf("Renamed %s to %s\n", identity.Name, name)
	return nil
}
