// Command gpuhal-capture is a thin diagnostic tool: it opens whichever
// backend is registered, wraps a small scripted command stream (clear
// a render target, transition it to a copy source) in a
// BeginCapture/EndCapture pair, and submits it. It exists so a
// RenderDoc/PIX capture can be triggered against a known-good,
// minimal workload without wiring a full renderer first.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/cmdstream"

	_ "github.com/gviegas/gpuhal/backend/vk"
)

func main() {
	name := flag.String("driver", "", "driver name to use (default: first registered)")
	captureName := flag.String("capture", "gpuhal-capture", "name passed to BeginCapture")
	width := flag.Int("width", 256, "render target width")
	height := flag.Int("height", 256, "render target height")
	flag.Parse()

	drv := selectDriver(*name)
	if drv == nil {
		log.Fatal("gpuhal-capture: no registered driver found")
	}
	defer drv.Close()

	cfg := gpuhal.DefaultConfig()
	backend, err := drv.Open(cfg)
	if err != nil {
		log.Fatalf("gpuhal-capture: %s.Open: %v", drv.Name(), err)
	}
	defer backend.Destroy()

	info := backend.AdapterInfo()
	log.Printf("gpuhal-capture: using %s backend on %q", drv.Name(), info.Name)

	rt, err := backend.CreateImage(gpuhal.ImageDesc{
		Format:  gpuhal.RGBA8un,
		Size:    gpuhal.Dim3D{Width: *width, Height: *height, Depth: 1},
		Layers:  1,
		Levels:  1,
		Samples: 1,
		Usage:   gpuhal.UsageRenderTarget | gpuhal.UsageCopySrc,
	})
	if err != nil {
		log.Fatalf("gpuhal-capture: CreateImage: %v", err)
	}
	defer backend.FreeResource(rt)

	fence, err := backend.CreateFence()
	if err != nil {
		log.Fatalf("gpuhal-capture: CreateFence: %v", err)
	}
	defer backend.FreeFence(fence)

	stream := scriptClearStream(rt)

	if err := backend.BeginCapture(*captureName); err != nil {
		log.Printf("gpuhal-capture: BeginCapture: %v (continuing without capture)", err)
	} else {
		defer func() {
			if err := backend.EndCapture(); err != nil {
				log.Printf("gpuhal-capture: EndCapture: %v", err)
			}
		}()
	}

	cl, err := backend.RecordCommandList(0, gpuhal.QueueDirect, stream)
	if err != nil {
		log.Fatalf("gpuhal-capture: RecordCommandList: %v", err)
	}

	const signalValue = 1
	if err := backend.Submit(gpuhal.QueueDirect, []gpuhal.CommandListHandle{cl}, fence, signalValue); err != nil {
		log.Fatalf("gpuhal-capture: Submit: %v", err)
	}
	if err := backend.WaitFenceCPU(context.Background(), fence, signalValue); err != nil {
		log.Fatalf("gpuhal-capture: WaitFenceCPU: %v", err)
	}

	log.Print("gpuhal-capture: scripted stream submitted and completed")
}

// selectDriver returns the driver named name, or the first registered
// driver if name is empty.
func selectDriver(name string) gpuhal.Driver {
	drivers := gpuhal.Drivers()
	if name == "" {
		if len(drivers) == 0 {
			return nil
		}
		return drivers[0]
	}
	for _, d := range drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// scriptClearStream builds the minimal command stream this tool
// exercises: transition rt into the render-target state, clear it,
// then transition it to CopySrc so a capturing tool can read it back.
func scriptClearStream(rt gpuhal.ResourceHandle) []byte {
	toRenderTarget := cmdstream.TransitionResources{
		Transitions: []cmdstream.TransitionInfo{
			{Resource: rt, Target: gpuhal.StateRenderTarget},
		},
	}
	clear := cmdstream.ClearTextures{
		Ops: []cmdstream.ClearOp{
			{
				View:       gpuhal.Texture2DView(rt, gpuhal.RGBA8un, 0, 1),
				ClearValue: [4]float32{0.1, 0.2, 0.3, 1.0},
			},
		},
	}
	toCopySrc := cmdstream.TransitionResources{
		Transitions: []cmdstream.TransitionInfo{
			{Resource: rt, Target: gpuhal.StateCopySrc},
		},
	}

	total := toRenderTarget.Size() + clear.Size() + toCopySrc.Size()
	buf := make([]byte, total)
	w := cmdstream.NewWriter(buf)
	w.Write(toRenderTarget)
	w.Write(clear)
	w.Write(toCopySrc)
	return w.Bytes()
}
