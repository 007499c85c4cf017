// Command mkblockfs formats and inspects blockfs images. It is a thin
// front-end over the blockfs package, not a shell: navigating and editing
// an image's contents is the job of whatever embeds the library.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vilterp/blockfs"
	"github.com/vilterp/blockfs/fsck"
)

func main() {
	app := cli.App{
		Usage: "Format and inspect blockfs images",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Format a fresh image",
				ArgsUsage: "IMAGE_FILE",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "block-size",
						Usage: "size of a single block, in bytes",
						Value: int64(blockfs.DefaultBlockSize),
					},
					&cli.Int64Flag{
						Name:  "num-blocks",
						Usage: "total number of blocks in the image (0 means block-size)",
						Value: 0,
					},
				},
				Action: createImage,
			},
			{
				Name:      "stat",
				Usage:     "Print an image's geometry and run an integrity check",
				ArgsUsage: "IMAGE_FILE",
				Action:    statImage,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mkblockfs: %s", err)
	}
}

func createImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("missing IMAGE_FILE argument", 1)
	}

	blockSize := int32(c.Int64("block-size"))
	numBlocks := int32(c.Int64("num-blocks"))

	fs, err := blockfs.CreateFS(path, blockSize, numBlocks)
	if err != nil {
		return cli.Exit(fmt.Sprintf("creating image: %s", err), 1)
	}
	defer fs.Close()

	fmt.Printf("created %s: block_size=%d num_blocks=%d capacity=%d bytes\n",
		path, fs.BlockSize(), fs.NumBlocks(), fs.Capacity())
	return nil
}

func statImage(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("missing IMAGE_FILE argument", 1)
	}

	fs, err := blockfs.OpenFS(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening image: %s", err), 1)
	}
	defer fs.Close()

	fmt.Printf("%s: block_size=%d num_blocks=%d max_file_length=%d max_dir_entries=%d max_name_length=%d\n",
		path, fs.BlockSize(), fs.NumBlocks(), fs.MaxFileLength(), fs.MaxDirEntries(), fs.MaxNameLength())

	if err := fsck.Check(fs); err != nil {
		fmt.Println("integrity check found problems:")
		fmt.Println(err)
		return cli.Exit("", 1)
	}
	fmt.Println("integrity check: ok")
	return nil
}
