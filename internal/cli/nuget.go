package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/errors"
)

// apiKeyEnv supplies the push API key when --api-key is not given.
const apiKeyEnv = "NUGET_API_KEY"

// downloadCommand creates the download-all-versions command.
func (c *CLI) downloadCommand() *cobra.Command {
	var (
		output         string
		maxConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "download-all-versions <source> <id>",
		Short: "Download every version of a package",
		Long: `Download every published version of a package from a NuGet v3 feed.

<source> is the feed's service index URL. Files are written as
{id}.{version}.nupkg, lowercase, into the output directory.`,
		Example: `  restoretrace download-all-versions https://api.nuget.org/v3/index.json Newtonsoft.Json -o pkgs`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDownload(cmd.Context(), args[0], args[1], output, maxConcurrency)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	cmd.Flags().IntVarP(&maxConcurrency, "max-concurrency", "c", 4, "parallel downloads")
	return cmd
}

func (c *CLI) runDownload(ctx context.Context, source, id, output string, maxConcurrency int) error {
	if err := errors.ValidateURL(source); err != nil {
		return err
	}
	if err := errors.ValidatePackageID(id); err != nil {
		return err
	}
	if err := errors.ValidatePath(output); err != nil {
		return err
	}
	client := c.newNuGetClient(cache.NewNullCache(), false)

	s := newSpinnerWithContext(ctx, "Resolving "+source)
	s.Start()
	bases, err := client.PackageBaseAddresses(ctx, source)
	s.Stop()
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	files, err := client.DownloadAll(ctx, bases[0], id, output, maxConcurrency)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("downloaded %d versions of %s", len(files), id))

	var total int64
	for _, f := range files {
		total += f.Size
	}
	printSuccess("Downloaded %d versions of %s (%d bytes)", len(files), id, total)
	printDetail("Directory: %s", output)
	return nil
}

// pushCommand creates the push command.
func (c *CLI) pushCommand() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "push <source> <nupkg>...",
		Short: "Push packages to a feed",
		Long: `Push .nupkg files to the PackagePublish resource of a NuGet v3 feed.

<source> is the feed's service index URL. The API key is read from --api-key
or $NUGET_API_KEY.`,
		Example: `  restoretrace push http://localhost:8080/v3/index.json pkgs/*.nupkg`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv(apiKeyEnv)
			}
			return c.runPush(cmd.Context(), args[0], args[1:], apiKey)
		},
	}

	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "feed API key")
	return cmd
}

func (c *CLI) runPush(ctx context.Context, source string, packages []string, apiKey string) error {
	if err := errors.ValidateURL(source); err != nil {
		return err
	}
	client := c.newNuGetClient(cache.NewNullCache(), false)
	pushURL, err := client.PushURL(ctx, source)
	if err != nil {
		return err
	}

	for _, path := range packages {
		s := newSpinnerWithContext(ctx, "Pushing "+path)
		s.Start()
		err := client.Push(ctx, pushURL, path, apiKey)
		if err != nil {
			s.StopWithError(path)
			return err
		}
		s.StopWithSuccess(path)
	}
	printDetail("Pushed %d packages to %s", len(packages), pushURL)
	return nil
}
