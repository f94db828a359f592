package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jlynch25/kaizen_api/internal/client"
	model "github.com/jlynch25/kaizen_api/models"
)

func (c *cli) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List, search and manage events",
	}
	cmd.AddCommand(
		c.eventsListCmd(),
		c.eventsSearchCmd(),
		c.eventsGetCmd(),
		c.eventsCreateCmd(),
		c.eventsDeleteCmd(),
	)
	return cmd
}

func (c *cli) eventsListCmd() *cobra.Command {
	var q client.EventQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := client.New(c.apiURL).Events(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&q.Day, "date", "", "only this calendar day (YYYY-MM-DD)")
	return cmd
}

func (c *cli) eventsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search event titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.New(c.apiURL).SearchEvents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), list)
		},
	}
}

func (c *cli) eventsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := client.New(c.apiURL).Event(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), event)
		},
	}
}

func (c *cli) eventsCreateCmd() *cobra.Command {
	var (
		in        client.CreateEventInput
		date      string
		imagePath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event, owned by the logged in user if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			when, err := time.Parse(time.RFC3339, date)
			if err != nil {
				return fmt.Errorf("--date must be RFC3339, e.g. 2030-01-02T20:00:00Z: %w", err)
			}
			in.Date = when

			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			if u := s.User(); u != nil && in.UserID == "" {
				in.UserID = u.ID.Hex()
			}

			if imagePath != "" {
				f, err := os.Open(imagePath)
				if err != nil {
					return err
				}
				defer f.Close()
				in.Image, in.ImageName = f, filepath.Base(imagePath)
			}

			event, err := s.Client().CreateEvent(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), event)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "event title")
	f.StringVar(&in.Description, "description", "", "event description")
	f.StringVar(&date, "date", "", "start time, RFC3339")
	f.StringVar(&in.Location, "location", "", "venue")
	f.Float64Var(&in.Price, "price", 0, "ticket price in FLOW")
	f.IntVar(&in.Seats, "seats", 1, "number of seats")
	f.StringVar(&in.Category, "category", string(model.CategoryLiveShows), "event category")
	f.StringVar(&imagePath, "image", "", "optional image file")
	return cmd
}

func (c *cli) eventsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			if err := s.Client().DeleteEvent(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "event deleted")
			return nil
		},
	}
}

func printEvents(w io.Writer, list []model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tCATEGORY\tPRICE\tSTATUS")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			e.ID.Hex(), e.Date.UTC().Format("2006-01-02 15:04"), e.Title, e.Category, e.Price, e.Status)
	}
	return tw.Flush()
}
