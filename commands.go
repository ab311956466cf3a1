// commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maous26/GG2-sub000/handlers"
	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/services"
	"github.com/maous26/GG2-sub000/utils"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.buildScanner(ctx); err != nil {
		return err
	}

	h := handlers.NewAdminHandler(handlers.AdminDeps{
		Scans:       a.scanner,
		Budget:      a.budget,
		Runs:        a.db,
		Deals:       a.db,
		Catalog:     a.catalog,
		DB:          a.db.DB,
		BaseContext: ctx,
	}, a.logger)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           handlers.SetupRouter(h, a.cfg.Server.AdminToken, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.scanner.StartScheduledScanning(gctx)
		a.scanner.Wait()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.buildScanner(ctx); err != nil {
		return err
	}

	var tier *int
	if scanTier > 0 {
		tier = &scanTier
	}
	reports, scanErr := a.scanner.ForceScan(ctx, tier, scanMaxRoutes)
	if err := printJSON(reports); err != nil {
		return err
	}
	if errors.Is(scanErr, services.ErrScanInProgress) {
		return nil
	}
	return scanErr
}

func runBudget(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	usage, err := a.budget.Usage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read budget usage: %w", err)
	}
	return printJSON(struct {
		models.BudgetCounters
		RemainingMonth int64 `json:"remainingMonth"`
		RemainingDay   int64 `json:"remainingDay"`
	}{usage, usage.RemainingMonth(), usage.RemainingDay()})
}

func runAddUser(cmd *cobra.Command, _ []string) error {
	seg, err := models.ParseSegment(userSegment)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	// ids derive from the email so re-adding a user updates it
	u := models.UserRef{
		ID:                uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(userEmail))).String(),
		Email:             userEmail,
		Segment:           seg,
		DepartureAirports: utils.SplitAirportList(userAirports),
	}
	if err := a.db.UpsertUser(cmd.Context(), u, true, time.Now().UTC()); err != nil {
		return err
	}
	return printJSON(u)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
