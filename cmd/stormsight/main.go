// Package main is the stormsight debug tool: it localizes the player and
// reads the heading, either live or from saved screenshots.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/stormsight/stormsight/capture"
	"github.com/stormsight/stormsight/compass"
	"github.com/stormsight/stormsight/feature"
	"github.com/stormsight/stormsight/locator"
)

func main() {
	var logger golog.Logger

	newEngine := func(c *cli.Context) (*locator.Engine, error) {
		cfg, err := locator.LoadConfig(c.String("config"))
		if err != nil {
			return nil, err
		}
		var grabber capture.Capturer = capture.DisplayCapturer{}
		if frame := c.String("frame"); frame != "" {
			img, err := imaging.Open(frame)
			if err != nil {
				return nil, errors.Wrapf(err, "loading frame %s", frame)
			}
			grabber = capture.StaticCapturer{Frame: img}
		}
		return locator.New(cfg, grabber, logger)
	}

	printResult := func(c *cli.Context, v interface{}) error {
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}

	app := &cli.App{
		Name:  "stormsight",
		Usage: "localize the player from screen captures",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Required: true,
				Usage:    "load engine configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "frame",
				Usage: "run against a saved screenshot `FILE` instead of the display",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("stormsight")
			} else {
				logger = zap.NewNop().Sugar()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "locate",
				Usage:     "report the player's world position on a map",
				ArgsUsage: "<map-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "render",
						Usage: "write a debug overlay PNG to `FILE`",
					},
					&cli.BoolFlag{
						Name:  "any",
						Usage: "fall back to the map icon when feature matching fails",
					},
				},
				Action: func(c *cli.Context) error {
					mapID := c.Args().First()
					if mapID == "" {
						return errors.New("a map id is required")
					}
					eng, err := newEngine(c)
					if err != nil {
						return err
					}
					var pos *locator.PlayerPosition
					if c.Bool("any") {
						pos, err = eng.LocateAny(mapID)
					} else {
						pos, err = eng.Locate(mapID)
					}
					if err != nil {
						return err
					}
					if render := c.String("render"); render != "" {
						if err := writeOverlay(c, eng, mapID, render); err != nil {
							return err
						}
					}
					if pos == nil {
						fmt.Fprintln(c.App.Writer, "null")
						return nil
					}
					return printResult(c, pos)
				},
			},
			{
				Name:      "heading",
				Usage:     "report the direction the player icon points at",
				ArgsUsage: "[minimap|fullmap]",
				Action: func(c *cli.Context) error {
					context := compass.ContextMinimap
					switch c.Args().First() {
					case "", string(compass.ContextMinimap):
					case string(compass.ContextFullMap):
						context = compass.ContextFullMap
					default:
						return errors.Errorf("unknown context %q", c.Args().First())
					}
					eng, err := newEngine(c)
					if err != nil {
						return err
					}
					dir, err := eng.Heading(context)
					if err != nil {
						return err
					}
					if dir == nil {
						fmt.Fprintln(c.App.Writer, "null")
						return nil
					}
					return printResult(c, dir)
				},
			},
			{
				Name:  "backends",
				Usage: "list the available feature backends",
				Action: func(c *cli.Context) error {
					return printResult(c, feature.Backends())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// writeOverlay reruns the match and saves the reference map with the
// projected patch outline and inliers drawn on it.
func writeOverlay(c *cli.Context, eng *locator.Engine, mapID, path string) error {
	res, ref, err := eng.Match(mapID)
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Fprintln(c.App.Writer, "no match to render")
		return nil
	}
	overlay, err := locator.RenderMatch(ref, res)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(path, overlay); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}
