package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thesyncim/mediagraph"
)

var probeFrames int

var probeCmd = &cobra.Command{
	Use:   "probe <producer[:arg]>",
	Short: "Pull frames from a producer and describe them",
	Long: `Probe creates a producer, pulls frames from it and prints each frame's
properties and payload.

Examples:
  mediagraph probe testpattern:bars
  mediagraph probe dump:bars.mgd --frames 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := newFactory()
		if err != nil {
			return err
		}
		defer factory.Close()
		return Probe(cmd.Context(), factory, args[0], probeFrames, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeFrames, "frames", 1, "number of frames to pull")
}

// Probe describes up to n frames of the producer named by id.
func Probe(ctx context.Context, factory *mediagraph.Factory, id string, n int, out io.Writer) error {
	prod, err := factory.Producer(nil, id, "")
	if err != nil {
		return err
	}
	defer prod.Close()

	length := "unbounded"
	if l := prod.Length(); l != mediagraph.Unbounded {
		length = fmt.Sprint(l)
	}
	fmt.Fprintf(out, "%s: length %s, profile %s\n", id, length, prod.Profile())

	for i := 0; i < n; i++ {
		frame, err := prod.GetFrame(ctx)
		if mediagraph.IsEndOfStream(err) {
			fmt.Fprintln(out, "end of stream")
			return nil
		}
		if err != nil {
			return err
		}
		describeFrame(out, frame)
		frame.Close()
	}
	return nil
}

func describeFrame(out io.Writer, frame *mediagraph.Frame) {
	fmt.Fprintf(out, "frame %d\n", frame.Position())
	props := frame.Properties()
	for _, name := range props.Names() {
		v, _ := props.Get(name)
		fmt.Fprintf(out, "  %s=%s\n", name, v)
	}
	if img := frame.Image; img != nil {
		fmt.Fprintf(out, "  image %dx%d %s (%d bytes)\n", img.Width, img.Height, img.Format, img.Size())
	}
	if a := frame.Audio; a != nil {
		fmt.Fprintf(out, "  audio %d Hz x%d %s, %d samples\n", a.SampleRate, a.Channels, a.Format, a.Samples)
	}
	if p := frame.Packet; p != nil {
		fmt.Fprintf(out, "  packet %s %d bytes keyframe=%t\n", p.Codec, len(p.Data), p.Keyframe)
	}
}
