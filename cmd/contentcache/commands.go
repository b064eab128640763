package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oriys/contentcache/internal/content"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/oriys/contentcache/internal/reconcile"
	"github.com/spf13/cobra"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// withApp wires the backends, runs fn, and closes everything. The context
// carries any trace parent handed down by the scheduler.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := observability.ContextFromEnv(cmd.Context())
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func reconcileCmd() *cobra.Command {
	var (
		classes []string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild counters from store aggregates",
		Long:  "Recompute every counter class (or the ones named by --class) from the store and replace the cached counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("workers") {
					workers = a.cfg.Cache.ReconcileWorker
				}
				job := reconcile.New(a.store, a.service.Counters, workers)
				report, err := job.Run(ctx, classes...)
				if report == nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CLASS\tKEY\tMEMBERS\tDURATION\tSTATUS")
				for _, res := range report.Results {
					status := "ok"
					if res.Err != nil {
						status = "failed"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						res.Class, res.Key, res.Members, res.Duration.Round(time.Millisecond), status)
				}
				w.Flush()
				if err != nil {
					return fmt.Errorf("reconcile %s: %d of %d classes failed: %w",
						report.RunID, len(report.Failed()), len(report.Results), err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&classes, "class", nil, "Counter class to reconcile (repeatable; default all)")
	cmd.Flags().IntVar(&workers, "workers", reconcile.DefaultWorkers, "Concurrent aggregate queries")
	return cmd
}

func articleCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "article <id>",
		Short: "Show an article as served from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				info, err := a.service.ArticleInfo(ctx, id)
				if err != nil {
					return err
				}
				detail, err := a.service.ArticleDetail(ctx, id)
				if err != nil {
					return err
				}
				attitude, err := a.service.Attitude(ctx, userID, id)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"info":     info,
					"detail":   detail,
					"attitude": attitude,
				})
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Acting user id for the attitude lookup")
	return cmd
}

func commentsCmd() *cobra.Command {
	var (
		offset  int64
		limit   int
		replies bool
	)

	cmd := &cobra.Command{
		Use:   "comments <article-id|comment-id>",
		Short: "Page an article's comments or a comment's replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var page *content.CommentPage
				if replies {
					page, err = a.service.CommentReplies(ctx, id, offset, limit)
				} else {
					page, err = a.service.ArticleComments(ctx, id, offset, limit)
				}
				if err != nil {
					return err
				}

				fmt.Printf("total=%d end=%d last=%d\n", page.Total, page.End, page.Last)
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tAUTHOR\tTOP\tLIKES\tREPLIES\tPUBDATE")
				for _, c := range page.Comments {
					fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%d\t%s\n",
						c.ID, c.AuthorName, c.IsTop, c.LikeCount, c.ReplyCount,
						c.PubDate.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().Int64Var(&offset, "offset", 0, "Cursor from the previous page's last value (0 for the first page)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Page size")
	cmd.Flags().BoolVar(&replies, "replies", false, "Treat the id as a comment and list its replies")
	return cmd
}

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Show a user profile with live counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.service.Profile(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func followingsCmd() *cobra.Command {
	var (
		page      int
		perPage   int
		followers bool
	)

	cmd := &cobra.Command{
		Use:   "followings <user-id>",
		Short: "List the users a user follows (or their followers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					total int64
					users []content.RelatedUser
				)
				if followers {
					total, users, err = a.service.FollowersPage(ctx, id, page, perPage)
				} else {
					total, users, err = a.service.FollowingsPage(ctx, id, page, perPage)
				}
				if err != nil {
					return err
				}

				fmt.Printf("total=%d page=%d\n", total, page)
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tMUTUAL")
				for _, u := range users {
					fmt.Fprintf(w, "%d\t%s\t%t\n", u.ID, u.Name, u.Mutual)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "Page size")
	cmd.Flags().BoolVar(&followers, "followers", false, "List followers instead")
	return cmd
}

// clearers maps a cache kind to the delete it performs for one id.
func clearers(s *content.Service) map[string]func(ctx context.Context, id int64) error {
	return map[string]func(ctx context.Context, id int64) error{
		"profile":      s.Profiles.Clear,
		"status":       s.Statuses.Clear,
		"extra":        s.Extras.Clear,
		"comment":      s.Comments.Clear,
		"announcement": s.Notices.Clear,
		"article": func(ctx context.Context, id int64) error {
			if err := s.ArticleInfos.Clear(ctx, id); err != nil {
				return err
			}
			return s.ArticleDetails.Clear(ctx, id)
		},
		"comments":         s.CommentIndex.Clear,
		"replies":          s.ReplyIndex.Clear,
		"user-articles":    s.UserArticleIndex.Clear,
		"user-collections": s.CollectionIndex.Clear,
		"announcements":    s.NoticeIndex.Clear,
		"followings":       s.Followings.Clear,
		"followers":        s.Followers.Clear,
		"reading-history":  s.Reading.Clear,
		"search-history":   s.Searching.Clear,
	}
}

func clearKinds() []string {
	kinds := make([]string, 0, 16)
	for k := range clearers(&content.Service{}) {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <kind> <id>",
		Short: "Delete one cached entry or index",
		Long:  "Delete one cached entry or index. Kinds: " + strings.Join(clearKinds(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				fn, ok := clearers(a.service)[args[0]]
				if !ok {
					return fmt.Errorf("unknown kind %q (valid: %s)", args[0], strings.Join(clearKinds(), ", "))
				}
				if err := fn(ctx, id); err != nil {
					return err
				}
				fmt.Printf("Cleared %s %d\n", args[0], id)
				return nil
			})
		},
	}
}
