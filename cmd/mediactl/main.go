// mediactl drives the car media pipeline from the command line: it
// authorizes, transfers, and registers a full photo set plus the engine
// sound video for one car, printing progress while the transfers run
// and polling the server-side checklist afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/motorscan/carhealth/internal/checklist"
	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/types/media"
	"github.com/motorscan/carhealth/internal/uploader"
)

type photoFlags struct {
	front     string
	rear      string
	left      string
	right     string
	interior  string
	engineBay string
}

func (pf photoFlags) toSet() uploader.PhotoSet {
	set := uploader.PhotoSet{}
	for pt, path := range map[media.PhotoType]string{
		media.PhotoFront:     pf.front,
		media.PhotoRear:      pf.rear,
		media.PhotoLeft:      pf.left,
		media.PhotoRight:     pf.right,
		media.PhotoInterior:  pf.interior,
		media.PhotoEngineBay: pf.engineBay,
	} {
		if path != "" {
			set[pt] = path
		}
	}
	return set
}

func main() {
	var (
		apiURL  = flag.String("api", "http://localhost:8080", "Base URL of the car health API")
		token   = flag.String("token", os.Getenv("CARHEALTH_TOKEN"), "Bearer token (defaults to CARHEALTH_TOKEN)")
		carID   = flag.String("car", "", "Car ID to upload media for")
		carMake = flag.String("make", "", "Create a new car with this make (requires -model and -year)")
		model   = flag.String("model", "", "Model for the new car")
		year    = flag.Int("year", 0, "Year for the new car")
		video   = flag.String("video", "", "Path to the engine sound video (MP4, 10-20s)")
		submit  = flag.Bool("submit", false, "Submit the car for analysis once the checklist validates")
		wait    = flag.Duration("wait", 2*time.Minute, "How long to poll validation after uploads finish")
		photos  photoFlags
	)
	flag.StringVar(&photos.front, "front", "", "Path to the front view photo")
	flag.StringVar(&photos.rear, "rear", "", "Path to the rear view photo")
	flag.StringVar(&photos.left, "left", "", "Path to the left side photo")
	flag.StringVar(&photos.right, "right", "", "Path to the right side photo")
	flag.StringVar(&photos.interior, "interior", "", "Path to the interior photo")
	flag.StringVar(&photos.engineBay, "engine-bay", "", "Path to the engine bay photo")
	flag.Parse()

	if *token == "" {
		log.Fatal("a bearer token is required: pass -token or set CARHEALTH_TOKEN")
	}

	photoSet := photos.toSet()
	if len(photoSet) == 0 && *video == "" {
		log.Fatal("nothing to upload: provide at least one photo flag or -video")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	api := uploader.NewClient(*apiURL, *token)

	// Every media call is scoped to one car id, created here or passed
	// in; there is no ambient "current car".
	id := *carID
	if id == "" {
		if *carMake == "" || *model == "" || *year == 0 {
			log.Fatal("no -car given: creating one requires -make, -model and -year")
		}
		var err error
		id, err = api.CreateCar(ctx, types.CarCreateRequest{
			Make:  *carMake,
			Model: *model,
			Year:  *year,
		})
		if err != nil {
			log.Fatalf("failed to create car: %s", err)
		}
		fmt.Printf("created car %s\n", id)
	}

	u := uploader.NewUploader(api)

	renderDone := make(chan struct{})
	renderCtx, stopRender := context.WithCancel(ctx)
	go func() {
		defer close(renderDone)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-renderCtx.Done():
				renderProgress(u.Store())
				return
			case <-ticker.C:
				renderProgress(u.Store())
			}
		}
	}()

	uploadErr := u.UploadAll(ctx, id, photoSet, *video)
	stopRender()
	<-renderDone

	if uploadErr != nil {
		log.Fatalf("upload failed: %s", uploadErr)
	}
	fmt.Println("all uploads completed")

	// Poll the server until the checklist validates or the wait window
	// runs out. A poll racing a registration may briefly under-report;
	// the next tick corrects it.
	pollCtx, pollCancel := context.WithTimeout(ctx, *wait)
	defer pollCancel()

	poller := uploader.NewValidationPoller(api, 3*time.Second)
	var last media.ValidationResult
	poller.Run(pollCtx, id, func(result media.ValidationResult) {
		last = result
		renderValidation(result)
		if result.IsValid {
			pollCancel()
		}
	})

	if !last.IsValid {
		fmt.Println("checklist did not validate within the wait window")
	}

	if *submit {
		if !last.CanSubmit {
			log.Fatal("cannot submit: no photos registered yet")
		}
		if err := api.SubmitCar(ctx, id); err != nil {
			log.Fatalf("failed to submit car: %s", err)
		}
		fmt.Printf("car %s submitted for analysis\n", id)
	}
}

func renderProgress(store *uploader.Store) {
	snapshot := store.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	lines := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		label := string(p.Type)
		if p.PhotoType != "" {
			label = checklist.Label(p.PhotoType)
		}
		line := fmt.Sprintf("  %-18s %3d%%  %s", label, p.Percent, p.Status)
		if p.Error != "" {
			line += "  " + p.Error
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	fmt.Println(strings.Join(lines, "\n"))
}

func renderValidation(result media.ValidationResult) {
	fmt.Printf("checklist: %d%% complete, valid=%t, canSubmit=%t\n",
		result.CompletionPercentage, result.IsValid, result.CanSubmit)
	for _, w := range result.Warnings {
		fmt.Println("  ! " + w)
	}
}
