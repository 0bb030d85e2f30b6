// Command framepump opens a window and renders into it with a frame pump:
// a clear to the configured color and, with -triangle, a shaded triangle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/gogpu/framepump"
	"github.com/gogpu/framepump/backend/wgpu"
	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/framepump/pipeline"
	"github.com/gogpu/framepump/platform/desktop"
	"github.com/gogpu/gputypes"
)

func init() {
	// GLFW calls must come from the main thread.
	runtime.LockOSThread()
}

const triangleWGSL = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec3<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOutput {
    var pos = array<vec2<f32>, 3>(
        vec2<f32>(0.0, 0.6),
        vec2<f32>(-0.6, -0.6),
        vec2<f32>(0.6, -0.6),
    );
    var col = array<vec3<f32>, 3>(
        vec3<f32>(1.0, 0.2, 0.2),
        vec3<f32>(0.2, 1.0, 0.2),
        vec3<f32>(0.2, 0.2, 1.0),
    );
    var out: VertexOutput;
    out.position = vec4<f32>(pos[i], 0.5, 1.0);
    out.color = col[i];
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(in.color, 1.0);
}
`

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		backend    = flag.String("backend", "", "backend name (overrides config)")
		logLevel   = flag.String("log-level", "", "log level (overrides config)")
		frames     = flag.Uint64("frames", 0, "stop after this many frames (0 runs until closed)")
		triangle   = flag.Bool("triangle", false, "draw a triangle over the clear color")
		dumpConfig = flag.Bool("dump-config", false, "print the effective configuration and exit")
	)
	flag.Parse()

	cfg := framepump.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = framepump.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *dumpConfig {
		if err := cfg.Encode(os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(cfg, *frames, *triangle); err != nil {
		log.Fatal(err)
	}
}

func run(cfg framepump.Config, maxFrames uint64, triangle bool) error {
	logger, err := framepump.NewTextLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	framepump.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	win, err := desktop.New(desktop.Options{Title: cfg.Title, Width: cfg.Width, Height: cfg.Height})
	if err != nil {
		return err
	}
	defer win.Close()

	handles, err := win.NativeHandles()
	if err != nil {
		return err
	}
	b, err := driver.Lookup(cfg.Backend)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, driver.Available())
	}
	bctx, err := b.Open(ctx, win, handles)
	if err != nil {
		return err
	}
	defer bctx.Close()
	gpu := "unknown GPU"
	if wb, ok := b.(*wgpu.Backend); ok {
		gpu = wb.Info().String()
	}

	depth, _ := cfg.DepthTextureFormat()
	rec := &sceneRecorder{dev: bctx.Device.(*wgpu.Device), triangle: triangle, depth: depth}
	defer rec.close()

	p, err := framepump.New(bctx.Device, bctx.Queue, bctx.Surface, rec, win, cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	p.AttachEvents(win)

	for !win.ShouldClose() && ctx.Err() == nil {
		win.ProcessEvents()
		if err := p.RunFrame(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		if maxFrames > 0 && p.Stats().Frames >= maxFrames {
			break
		}
	}

	st := p.Stats()
	log.Printf("%s: presented %d frames, %d rebuilds, %d suspensions", gpu, st.Frames, st.Rebuilds, st.Suspensions)
	return p.Close()
}

// sceneRecorder clears the frame and optionally draws a triangle. The
// pipeline is rebuilt when the chain format changes.
type sceneRecorder struct {
	dev      *wgpu.Device
	triangle bool
	depth    gputypes.TextureFormat

	modules *pipeline.Cache
	pipe    *pipeline.Pipeline
	format  gputypes.TextureFormat
}

func (r *sceneRecorder) Record(_ context.Context, f framepump.Frame, cl driver.CommandList) error {
	if r.triangle && (r.pipe == nil || r.format != f.Format) {
		if err := r.build(f.Format); err != nil {
			return err
		}
	}
	pass, err := wgpu.BeginRenderPass(cl, f.Framebuffer)
	if err != nil {
		return err
	}
	if r.pipe != nil {
		pass.SetViewport(0, 0, float32(f.Extent.Width), float32(f.Extent.Height), 0, 1)
		pass.SetPipeline(r.pipe.Render())
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()
	return nil
}

func (r *sceneRecorder) build(format gputypes.TextureFormat) error {
	if r.modules == nil {
		r.modules = pipeline.NewCache(r.dev.HAL(), pipeline.CacheOptions{})
	}
	desc := pipeline.Raster("triangle",
		pipeline.Shader{WGSL: triangleWGSL, EntryPoint: "vs_main"},
		pipeline.Shader{WGSL: triangleWGSL, EntryPoint: "fs_main"},
		format)
	if r.depth != gputypes.TextureFormatUndefined {
		desc = desc.WithDepth(r.depth)
	}
	p, err := pipeline.Build(r.dev.HAL(), desc, r.modules)
	if err != nil {
		return err
	}
	if r.pipe != nil {
		// The old pipeline may still be referenced by frames in flight.
		if err := r.dev.WaitIdle(); err != nil {
			return err
		}
		r.pipe.Destroy()
	}
	r.pipe, r.format = p, format
	return nil
}

func (r *sceneRecorder) close() {
	if r.pipe != nil {
		r.pipe.Destroy()
	}
	if r.modules != nil {
		r.modules.Close()
	}
}
