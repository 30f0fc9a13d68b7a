package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/services"
)

const timeLayout = "2006-01-02 15:04"

func (a *App) New(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title (empty for today's date)", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content", a.out)
	if err != nil {
		return err
	}

	e, err := a.journal.Submit(ctx, services.SubmitInput{Title: title, Content: content})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s, queued for sync\n", e.ID)
	return nil
}

func (a *App) Edit(ctx context.Context, id string) error {
	e, err := a.journal.Get(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Current content of %q:\n%s\n\n", e.Title, e.Content)

	content, err := GetMultiline(a.reader, "New content", a.out)
	if err != nil {
		return err
	}
	if _, err := a.journal.Edit(ctx, id, services.EditInput{Content: content}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s, queued for sync\n", id)
	return nil
}

func (a *App) List(ctx context.Context) error {
	list, err := a.journal.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No entries yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tCREATED\tTITLE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.SyncState, localTime(e.CreatedAt), e.Title)
	}
	return tw.Flush()
}

func (a *App) Show(ctx context.Context, id string) error {
	e, err := a.journal.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:       %s\n", e.ID)
	fmt.Fprintf(a.out, "Title:    %s\n", e.Title)
	fmt.Fprintf(a.out, "Created:  %s\n", localTime(e.CreatedAt))
	fmt.Fprintf(a.out, "Updated:  %s\n", localTime(e.UpdatedAt))
	fmt.Fprintf(a.out, "State:    %s\n", e.SyncState)
	if e.RemoteID != "" {
		fmt.Fprintf(a.out, "Remote:   %s\n", e.RemoteID)
	}
	if e.LastSyncedAt != nil {
		fmt.Fprintf(a.out, "Synced:   %s\n", localTime(*e.LastSyncedAt))
	}
	if e.LastError != "" {
		fmt.Fprintf(a.out, "Error:    %s\n", e.LastError)
	}
	fmt.Fprintf(a.out, "\n%s\n", e.Content)
	return nil
}

func (a *App) Retry(ctx context.Context, id string) error {
	if _, err := a.journal.Retry(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued %s again\n", id)
	return nil
}

func (a *App) Cancel(ctx context.Context, id string) error {
	return a.journal.Cancel(ctx, id)
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.journal.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s locally\n", id)
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if err := a.journal.SyncNow(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Queue drained")
	return nil
}

func (a *App) Pull(ctx context.Context) error {
	res, err := a.journal.PullChanges(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pulled: %d created, %d updated, %d unchanged\n", res.Created, res.Updated, res.Skipped)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.journal.Status()
	if len(st.Queued) == 0 && len(st.InFlight) == 0 {
		fmt.Fprintln(a.out, "Nothing to push")
		return nil
	}
	for _, id := range st.InFlight {
		fmt.Fprintf(a.out, "pushing  %s\n", id)
	}
	for _, id := range st.Queued {
		fmt.Fprintf(a.out, "queued   %s\n", id)
	}
	return nil
}

func (a *App) Verify(ctx context.Context) error {
	if err := a.journal.Verify(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Remote is reachable and correctly set up")
	return nil
}

func (a *App) InitRemote(ctx context.Context, parent string) error {
	id, err := a.journal.Provision(ctx, parent)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created remote database %s\nSet it as the database id in your configuration.\n", id)
	return nil
}

func localTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

var _ commands = (*App)(nil)
