package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newVerbCmd creates the command for one HTTP method
func newVerbCmd(method, short, example string) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:     fmt.Sprintf("%s URL", strings.ToLower(method)),
		Short:   short,
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], opts)
		},
	}
	addRequestFlags(cmd, opts)

	return cmd
}

func newGetCmd() *cobra.Command {
	return newVerbCmd("GET", "Make a GET request to the specified URL",
		`  fling get https://httpbin.org/get -q page=2
  fling get https://httpbin.org/json -e title=$.slideshow.title`)
}

func newHeadCmd() *cobra.Command {
	return newVerbCmd("HEAD", "Make a HEAD request to the specified URL",
		`  fling head https://httpbin.org/get -v`)
}

func newPostCmd() *cobra.Command {
	return newVerbCmd("POST", "Make a POST request to the specified URL",
		`  fling post https://httpbin.org/post -d name=fling
  fling post https://httpbin.org/post --form -d grant_type=client_credentials
  fling post https://httpbin.org/post -F avatar=@me.png -d name=fling`)
}

func newPutCmd() *cobra.Command {
	return newVerbCmd("PUT", "Make a PUT request to the specified URL",
		`  fling put https://httpbin.org/put -d '{"name": "Updated Resource"}'`)
}

func newPatchCmd() *cobra.Command {
	return newVerbCmd("PATCH", "Make a PATCH request to the specified URL",
		`  fling patch https://httpbin.org/patch -d status=active`)
}

func newDeleteCmd() *cobra.Command {
	return newVerbCmd("DELETE", "Make a DELETE request to the specified URL",
		`  fling delete https://httpbin.org/delete -u admin:secret`)
}
