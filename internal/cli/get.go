package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"reviewhub-console/internal/app"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/output"
	"reviewhub-console/internal/store"
)

type getRequest struct {
	app      string
	store    string
	page     int
	size     int
	company  int64
	criteria store.Criteria
	ratings  []int
	keyword  string
}

func (r getRequest) filtered() bool {
	return len(r.ratings) > 0 || r.keyword != ""
}

func newGetCommand(opts *globalOptions) *cobra.Command {
	var req getRequest

	cmd := &cobra.Command{
		Use:   "get <app> <store>",
		Short: "Fetch one page of a store and print it",
		Long: `Get fetches one page of an application's store from the backend and prints it.

Applications are admin, business and reviewer. Business stores need --company.
--rating and --keyword switch to the client-side filtered review view.`,
		Example: `  console get admin companies --status pending
  console get business reviews --company 1 -o json
  console get reviewer reviews --company 1 --rating 5,4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.app, req.store = args[0], args[1]

			cfg := loadConfig(opts, cmd.ErrOrStderr())
			if req.size <= 0 {
				req.size = cfg.DefaultPageSize
			}
			client, err := newClient(cfg, nil)
			if err != nil {
				return err
			}
			apps := app.New(client, nil, nil, app.Options{
				PageSize:        req.size,
				BulkConcurrency: cfg.BulkConcurrency,
			})

			return runGet(cmd.Context(), cmd.OutOrStdout(), apps, req, opts.output)
		},
	}

	cmd.Flags().IntVar(&req.page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&req.size, "size", 0, "page size (default DEFAULT_PAGE_SIZE)")
	cmd.Flags().Int64Var(&req.company, "company", 0, "company to scope business and reviewer stores to")
	cmd.Flags().StringVar(&req.criteria.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&req.criteria.Search, "search", "", "server-side search")
	cmd.Flags().StringVar(&req.criteria.Sort, "sort", "", "server-side sort")
	cmd.Flags().IntSliceVar(&req.ratings, "rating", nil, "ratings to keep in the filtered review view")
	cmd.Flags().StringVar(&req.keyword, "keyword", "", "keyword for the filtered review view")
	return cmd
}

func runGet(ctx context.Context, out io.Writer, apps *app.Apps, req getRequest, format string) error {
	c, ok := apps.Get(req.app)
	if !ok {
		return fmt.Errorf("unknown application %q (one of %s, %s, %s)", req.app, app.NameAdmin, app.NameBusiness, app.NameReviewer)
	}
	if err := selectCompany(apps, req); err != nil {
		return err
	}
	req.criteria.Status = models.NormalizeStatus(req.criteria.Status)

	var (
		handle app.Handle
		res    app.Result
	)
	if req.filtered() {
		h, filterer, ok := app.FilteredHandle(c, req.store)
		if !ok {
			return fmt.Errorf("store %s/%s has no client-side filters", c.Name(), req.store)
		}
		handle = h
		res = filterer.Filter(ctx, store.FilterCriteria{
			Ratings: req.ratings,
			Status:  req.criteria.Status,
			Keyword: req.keyword,
		}, req.page)
	} else {
		h, ok := c.Handle(req.store)
		if !ok {
			return fmt.Errorf("unknown store %q (one of %s)", req.store, strings.Join(c.Names(), ", "))
		}
		handle = h
		var err error
		res, err = h.Fetch(ctx, app.FetchQuery{Page: req.page, Size: req.size, Criteria: req.criteria})
		if err != nil {
			return err
		}
	}

	if !res.OK {
		return fmt.Errorf("fetch %s/%s failed: %s", c.Name(), handle.Name(), handle.LastError())
	}

	fmt.Fprint(out, render(format, res.State))
	return nil
}

func selectCompany(apps *app.Apps, req getRequest) error {
	switch req.app {
	case app.NameBusiness:
		if req.company <= 0 {
			return errors.New("business stores need --company")
		}
		return apps.Business.SwitchCompany(req.company)
	case app.NameReviewer:
		apps.Reviewer.SelectCompany(req.company)
	}
	return nil
}

// render prints the whole snapshot as JSON or YAML; tables show the items
// of a page, or the data of a record, followed by the page position
func render(format string, state any) string {
	formatter := output.NewFormatter(format)
	if _, ok := formatter.(*output.TableFormatter); !ok {
		return formatter.Format(state)
	}

	v := reflect.ValueOf(state)
	if v.Kind() != reflect.Struct {
		return formatter.Format(state)
	}
	if data := v.FieldByName("Data"); data.IsValid() {
		return formatter.Format(data.Interface())
	}
	items := v.FieldByName("Items")
	if !items.IsValid() {
		return formatter.Format(state)
	}

	var b strings.Builder
	b.WriteString(formatter.Format(items.Interface()))
	page := intField(v, "CurrentPage", "Page")
	pages := intField(v, "TotalPages")
	total := intField(v, "TotalItems", "FilteredCount")
	fmt.Fprintf(&b, "\nPage %d of %d, %d items\n", page+1, max(pages, 1), total)
	return b.String()
}

func intField(v reflect.Value, names ...string) int {
	for _, name := range names {
		if f := v.FieldByName(name); f.IsValid() && f.CanInt() {
			return int(f.Int())
		}
	}
	return 0
}
