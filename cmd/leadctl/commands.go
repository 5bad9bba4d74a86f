package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/client"
	"github.com/phbpx/leadtrack/geo"
	"github.com/phbpx/leadtrack/leadview"
	"github.com/spf13/cobra"
)

func leadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List, create, update, delete and export leads",
	}
	cmd.AddCommand(
		leadsListCmd(a),
		leadsCreateCmd(a),
		leadsUpdateCmd(a),
		leadsDeleteCmd(a),
		leadsExportCmd(a),
	)
	return cmd
}

// listFlags are shared by list and export so both see the same lead set.
type listFlags struct {
	status    string
	city      string
	hasImages bool
	query     string
	user      string
	limit     int
	offset    int
}

func (lf *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.status, "status", "", "Only leads in this status")
	cmd.Flags().StringVar(&lf.city, "city", "", "Only leads in this city")
	cmd.Flags().BoolVar(&lf.hasImages, "has-images", false, "Only leads with at least one image")
	cmd.Flags().StringVar(&lf.query, "query", "", "Address substring")
	cmd.Flags().StringVar(&lf.user, "user", "", "Only leads created by this user id")
	cmd.Flags().IntVar(&lf.limit, "limit", 0, "Page size (0 for all)")
	cmd.Flags().IntVar(&lf.offset, "offset", 0, "Page offset")
}

func (lf *listFlags) fetch(cmd *cobra.Command, a *app) ([]leadtrack.Lead, error) {
	filter := leadview.Filter{City: lf.city, HasImages: lf.hasImages, Query: lf.query}
	if lf.status != "" {
		st, err := leadtrack.ParseStatus(lf.status)
		if err != nil {
			return nil, fmt.Errorf("--status %q: %w", lf.status, err)
		}
		filter.Status = st
	}

	page := client.Page{Limit: lf.limit, Offset: lf.offset}

	var (
		leads []leadtrack.Lead
		err   error
	)
	if lf.user != "" {
		leads, err = a.client.ListUserLeads(cmd.Context(), lf.user, page)
	} else {
		leads, err = a.client.ListLeads(cmd.Context(), page)
	}
	if err != nil {
		return nil, err
	}
	return filter.Apply(leads), nil
}

func leadsListCmd(a *app) *cobra.Command {
	var (
		lf     listFlags
		sortBy string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			leads, err := lf.fetch(cmd, a)
			if err != nil {
				return err
			}
			if sortBy != "" {
				st, err := leadtrack.ParseStatus(sortBy)
				if err != nil {
					return fmt.Errorf("--sort-status %q: %w", sortBy, err)
				}
				leads = leadview.SortByStatus(leads, st)
			}
			if asJSON {
				return printJSON(a.out, leads)
			}
			return printLeads(a.out, leads)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&sortBy, "sort-status", "", "Show leads in this status first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func leadsExportCmd(a *app) *cobra.Command {
	var (
		lf  listFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered leads as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			leads, err := lf.fetch(cmd, a)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return leadview.ExportCSV(a.out, leads)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := leadview.ExportCSV(f, leads); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(a.out, "exported %d leads to %s\n", len(leads), out)
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

// fieldFlags are the editable lead fields.
type fieldFlags struct {
	name, address, city, state, zip string
	owner, status, notes            string
	images                          []string
}

func (ff *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.name, "name", "", "Display name")
	cmd.Flags().StringVar(&ff.address, "address", "", "Street address")
	cmd.Flags().StringVar(&ff.city, "city", "", "City")
	cmd.Flags().StringVar(&ff.state, "state", "", "State")
	cmd.Flags().StringVar(&ff.zip, "zip", "", "Zip code")
	cmd.Flags().StringVar(&ff.owner, "owner", "", "Owner name")
	cmd.Flags().StringVar(&ff.status, "status", "", "Lead, Contact, Offer or Sale")
	cmd.Flags().StringVar(&ff.notes, "notes", "", "Free-form notes")
	cmd.Flags().StringSliceVar(&ff.images, "image", nil, "Image URL, repeatable; the first is the thumbnail")
}

func leadsCreateCmd(a *app) *cobra.Command {
	var (
		ff       fieldFlags
		user     string
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead, optionally filling the address from coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed leadtrack.Lead
			if user != "" {
				seed.UserID = &user
			}

			d := leadview.NewDraft(seed)
			d.SetName(ff.name)
			d.SetAddress(ff.address)
			d.SetCity(ff.city)
			d.SetState(ff.state)
			d.SetZip(ff.zip)
			d.SetOwner(ff.owner)
			d.SetNotes(ff.notes)
			for _, img := range ff.images {
				d.AddImage(img)
			}
			if ff.status != "" {
				if err := d.SetStatus(ff.status); err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				g, err := a.geocoder()
				if err != nil {
					return err
				}
				addr, err := g.Reverse(cmd.Context(), geo.Coordinate{Lat: lat, Lng: lng})
				if err != nil {
					return err
				}
				filled := geo.Autofill(d, addr)
				a.log.Infow("autofill", "filled", filled)
			}

			if !d.Dirty() {
				return fmt.Errorf("no lead fields given")
			}
			if _, err := d.Leave(cmd.Context(), a.client); err != nil {
				return err
			}
			return printJSON(a.out, d.Lead())
		},
	}

	ff.register(cmd)
	cmd.Flags().StringVar(&user, "user", "", "Creating user id")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude to reverse geocode into empty address fields")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude to reverse geocode into empty address fields")
	return cmd
}

func leadsUpdateCmd(a *app) *cobra.Command {
	var (
		ff      fieldFlags
		version int64
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the given fields of a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch leadtrack.LeadPatch
			flags := cmd.Flags()
			for name, dst := range map[string]**string{
				"name":    &patch.Name,
				"address": &patch.Address,
				"city":    &patch.City,
				"state":   &patch.State,
				"zip":     &patch.Zip,
				"owner":   &patch.Owner,
				"status":  &patch.Status,
				"notes":   &patch.Notes,
			} {
				if flags.Changed(name) {
					v, _ := flags.GetString(name)
					*dst = &v
				}
			}
			if flags.Changed("image") {
				patch.Images = &ff.images
			}
			if flags.Changed("version") {
				patch.Version = &version
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update")
			}

			lead, err := a.client.UpdateLead(cmd.Context(), id, patch)
			if client.IsConflict(err) {
				return fmt.Errorf("lead %d changed since version %d, fetch it again", id, version)
			}
			if err != nil {
				return err
			}
			return printJSON(a.out, lead)
		},
	}

	ff.register(cmd)
	cmd.Flags().Int64Var(&version, "version", 0, "Only update if the lead is still at this version")
	return cmd
}

func leadsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a lead and its uploaded images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteLead(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted lead %d\n", id)
			return nil
		},
	}
}

func uploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload property photos and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]client.File, 0, len(args))
			for _, p := range args {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, client.File{Name: filepath.Base(p), Data: f})
			}

			urls, err := a.client.UploadImages(cmd.Context(), files...)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(a.out, u)
			}
			return nil
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pipeline statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, stats)
		},
	}
}

func autofillCmd(a *app) *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "autofill",
		Short: "Reverse geocode coordinates into lead address fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.geocoder()
			if err != nil {
				return err
			}
			addr, err := g.Reverse(cmd.Context(), geo.Coordinate{Lat: lat, Lng: lng})
			if err != nil {
				return err
			}
			return printJSON(a.out, map[string]string{
				"address": addr.Street,
				"city":    addr.City,
				"state":   addr.State,
				"zip":     addr.Zip,
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid lead id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLeads(w io.Writer, leads []leadtrack.Lead) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tADDRESS\tCITY\tSTATE\tZIP\tIMAGES")
	for _, l := range leads {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n", l.ID, l.Status, l.Address, l.City, l.State, l.Zip, len(l.Images))
	}
	return tw.Flush()
}
