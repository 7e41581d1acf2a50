package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Astemirdum/library-catalog/library/client"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (c *cli) booksCommand() *cobra.Command {
	books := &cobra.Command{
		Use:   "books",
		Short: "List and change books",
	}

	var filter model.BookFilter
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "Search books by name or author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Status = model.Status(status)
			if filter.Status != "" && !filter.Status.Valid() {
				return errors.Errorf("unknown status %q", status)
			}
			found, err := c.client.ListBooks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return c.printBooks(found)
		},
	}
	addFilterFlags(list, &filter)
	list.Flags().StringVar(&status, "status", "", "available, requested or borrowed")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := c.client.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(book)
		},
	}

	var req model.AddBookRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			book, err := c.client.AddBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printJSON(book)
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "book name")
	add.Flags().StringVar(&req.Author, "author", "", "author")
	add.Flags().StringVar(&req.PlacementNumber, "placement", "", "shelf placement number")
	add.Flags().StringVar(&req.CategoryID, "category", "", "category id")
	add.Flags().StringVar(&req.CoverImageURL, "cover-url", "", "cover image url")
	for _, name := range []string{"name", "author", "placement", "category"} {
		_ = add.MarkFlagRequired(name)
	}

	var requester string
	request := &cobra.Command{
		Use:   "request ID",
		Short: "Ask to borrow an available book",
		Args:  cobra.ExactArgs(1),
		RunE: c.viewRunE(func(ctx context.Context, v *client.View, id string) (model.Book, error) {
			return v.RequestBorrow(ctx, id, requester)
		}),
	}
	request.Flags().StringVar(&requester, "borrower", "", "borrower name")

	var due, borrower string
	approve := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a borrow request (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: c.viewRunE(func(ctx context.Context, v *client.View, id string) (model.Book, error) {
			dueDate, err := time.ParseInLocation(time.DateOnly, due, time.Local)
			if err != nil {
				return model.Book{}, errors.Wrap(err, "due date")
			}
			return v.ApproveBorrow(ctx, id, dueDate, borrower)
		}),
	}
	approve.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	approve.Flags().StringVar(&borrower, "borrower", "", "borrower name")
	_ = approve.MarkFlagRequired("due")
	_ = approve.MarkFlagRequired("borrower")

	reject := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a borrow request (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: c.viewRunE(func(ctx context.Context, v *client.View, id string) (model.Book, error) {
			return v.RejectBorrow(ctx, id)
		}),
	}

	ret := &cobra.Command{
		Use:   "return ID",
		Short: "Mark a borrowed book returned (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: c.viewRunE(func(ctx context.Context, v *client.View, id string) (model.Book, error) {
			return v.ReturnBook(ctx, id)
		}),
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a book (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.view(cmd.Context())
			if err != nil {
				return err
			}
			if err := v.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "book %s deleted\n", args[0])
			return nil
		},
	}

	books.AddCommand(list, get, add, request, approve, reject, ret, del)
	return books
}

func (c *cli) categoriesCommand() *cobra.Command {
	categories := &cobra.Command{
		Use:   "categories",
		Short: "List and add categories",
	}
	list := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := c.client.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, cat := range found {
				fmt.Fprintf(w, "%s\t%s\n", cat.ID, cat.Name)
			}
			return w.Flush()
		},
	}
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a category (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := c.client.AddCategory(cmd.Context(), model.AddCategoryRequest{Name: args[0]})
			if err != nil {
				return err
			}
			return c.printJSON(category)
		},
	}
	categories.AddCommand(list, add)
	return categories
}

func (c *cli) catalogCommand() *cobra.Command {
	var filter model.BookFilter
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Books grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			groups, err := c.client.Catalog(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintf(c.out, "== %s (%d)\n", g.Category.Name, len(g.Books))
				if err := c.printBooks(g.Books); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func (c *cli) dashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Requested, borrowed and overdue books (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dash, err := c.client.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			for _, section := range []struct {
				title string
				books []model.Book
			}{
				{"requested", dash.Requested},
				{"borrowed", dash.Borrowed},
				{"overdue", dash.Overdue},
			} {
				fmt.Fprintf(c.out, "== %s (%d)\n", section.title, len(section.books))
				if err := c.printBooks(section.books); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) snapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Dump the whole catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := c.client.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(snap)
		},
	}
}

func (c *cli) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Start an admin session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := c.readSecret("Admin code: ")
			if err != nil {
				return err
			}
			token, err := c.client.Login(cmd.Context(), code)
			if err != nil {
				return err
			}
			if err := c.saveToken(token); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "logged in")
			return nil
		},
	}
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the admin session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.client.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := c.dropToken(); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "logged out")
			return nil
		},
	}
}

func (c *cli) passwdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the admin code (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := c.readSecret("Current code: ")
			if err != nil {
				return err
			}
			next, err := c.readSecret("New code: ")
			if err != nil {
				return err
			}
			confirm, err := c.readSecret("Repeat new code: ")
			if err != nil {
				return err
			}
			if next != confirm {
				return errors.New("new codes do not match")
			}
			if err := c.client.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "admin code changed")
			return nil
		},
	}
}

// view loads a one-shot View so lifecycle guards run before any request is sent.
func (c *cli) view(ctx context.Context) (*client.View, error) {
	v := client.NewView(c.client, 0, c.log)
	if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *cli) viewRunE(fn func(ctx context.Context, v *client.View, id string) (model.Book, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		v, err := c.view(cmd.Context())
		if err != nil {
			return err
		}
		book, err := fn(cmd.Context(), v, args[0])
		if err != nil {
			return err
		}
		return c.printJSON(book)
	}
}

func (c *cli) printBooks(books []model.Book) error {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAUTHOR\tPLACE\tSTATUS\tBORROWER\tDUE")
	for _, b := range books {
		due := ""
		if b.DueDate != nil {
			due = b.DueDate.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Name, b.Author, b.PlacementNumber, b.Status, b.BorrowerName, due)
	}
	return w.Flush()
}

func addFilterFlags(cmd *cobra.Command, filter *model.BookFilter) {
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "name or author substring")
	cmd.Flags().StringVar(&filter.CategoryID, "category", "", "category id, all for any")
}
