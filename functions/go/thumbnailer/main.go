package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
	"golang.org/x/image/draw"
)

type InputData struct {
	Image  []byte `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type OutputData struct {
	Image  []byte `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.TypedAsync(handler))
}

// Inspired by https://github.com/spcl/serverless-benchmarks/blob/master/benchmarks/200.multimedia/210.thumbnailer/python/function.py
func handler(ctx context.Context, input InputData, md *functionRuntimeInterface.Metadata, complete func(OutputData, error)) {
	if input.Width <= 0 || input.Height <= 0 {
		complete(OutputData{}, fmt.Errorf("invalid thumbnail size %dx%d", input.Width, input.Height))
		return
	}

	go func() {
		resized, err := resizeImage(input.Image, input.Width, input.Height)
		if err != nil {
			complete(OutputData{}, fmt.Errorf("resize failed: %w", err))
			return
		}
		complete(OutputData{Image: resized, Width: input.Width, Height: input.Height}, nil)
	}()
}

func resizeImage(input []byte, w, h int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, nil); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
