package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// NewPostTypeCommand creates the post-type command group
func NewPostTypeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post-type",
		Short: "Manage post types",
	}

	var featuredImage bool
	put := &cobra.Command{
		Use:   "put <slug>",
		Short: "Register or update a post type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postType, err := clientFromFlags(cmd).PutPostType(cmd.Context(), args[0], featuredImage)
			if err != nil {
				return fmt.Errorf("put post type failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), postType)
		},
	}
	put.Flags().BoolVar(&featuredImage, "featured-image", true, "post type supports a featured image")

	cmd.AddCommand(put)
	return cmd
}

// NewMediaCommand creates the media command group
func NewMediaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Manage media items",
	}

	var media featuredsync.MediaObject
	var largeURL string
	put := &cobra.Command{
		Use:   "put <media-id>",
		Short: "Store a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMediaID(args[0])
			if err != nil {
				return err
			}
			media.ID = id
			if largeURL != "" {
				media.Sizes.Large = &featuredsync.MediaSize{URL: largeURL}
			}

			stored, err := clientFromFlags(cmd).PutMedia(cmd.Context(), media)
			if err != nil {
				return fmt.Errorf("put media failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}
	put.Flags().StringVar(&media.URL, "url", "", "original URL")
	put.Flags().StringVar(&largeURL, "large-url", "", "URL of the large rendition")
	put.Flags().StringVar(&media.Link, "link", "", "attachment page URL")
	put.Flags().StringVar(&media.Caption, "caption", "", "caption")
	put.Flags().StringVar(&media.AltText, "alt", "", "alternative text")

	cmd.AddCommand(put)
	return cmd
}

// NewDocumentCommand creates the doc command group
func NewDocumentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc",
		Aliases: []string{"document"},
		Short:   "Manage documents",
	}

	var postType string
	var featured int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := clientFromFlags(cmd).CreateDocument(cmd.Context(), postType, featuredsync.MediaID(featured))
			if err != nil {
				return fmt.Errorf("create document failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	create.Flags().StringVar(&postType, "post-type", "post", "post type slug")
	create.Flags().Int64Var(&featured, "featured", 0, "initial featured media id")

	get := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "document")
			if err != nil {
				return err
			}
			doc, err := clientFromFlags(cmd).GetDocument(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get document failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	setFeatured := &cobra.Command{
		Use:   "featured <document-id> <media-id>",
		Short: "Change the featured image of a document (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "document")
			if err != nil {
				return err
			}
			mediaID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || mediaID < 0 {
				return fmt.Errorf("invalid media ID: %s", args[1])
			}
			doc, err := clientFromFlags(cmd).SetFeaturedMedia(cmd.Context(), id, featuredsync.MediaID(mediaID))
			if err != nil {
				return fmt.Errorf("set featured media failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	blocks := &cobra.Command{
		Use:   "blocks <document-id>",
		Short: "List the blocks of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "document")
			if err != nil {
				return err
			}
			list, err := clientFromFlags(cmd).ListBlocks(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("list blocks failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	notices := &cobra.Command{
		Use:   "notices <document-id>",
		Short: "Show and clear pending notices of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "document")
			if err != nil {
				return err
			}
			pending, err := clientFromFlags(cmd).DrainNotices(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("drain notices failed: %w", err)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notices")
				return nil
			}
			for _, n := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s (block %s)\n", n.ID, n.Message, n.BlockID)
			}
			return nil
		},
	}

	cmd.AddCommand(create, get, setFeatured, blocks, notices)
	return cmd
}

// NewBlockCommand creates the block command group
func NewBlockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage image blocks",
	}

	var wait bool

	var createAttrs featuredsync.BlockAttributes
	var createID int64
	create := &cobra.Command{
		Use:   "create <document-id>",
		Short: "Add an image block to a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentID, err := parseUUID(args[0], "document")
			if err != nil {
				return err
			}
			createAttrs.ID = featuredsync.MediaID(createID)
			block, err := clientFromFlags(cmd).CreateBlock(cmd.Context(), documentID, createAttrs)
			if err != nil {
				return fmt.Errorf("create block failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), block)
		},
	}
	create.Flags().Int64Var(&createID, "id", 0, "media id shown by the block")
	create.Flags().StringVar(&createAttrs.URL, "url", "", "image URL")
	create.Flags().BoolVar(&createAttrs.ShouldSync, "sync", false, "synchronize with the featured image")

	get := &cobra.Command{
		Use:   "get <block-id>",
		Short: "Show a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			block, err := clientFromFlags(cmd).GetBlock(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get block failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), block)
		},
	}

	var imageURL string
	setImage := &cobra.Command{
		Use:   "set-image <block-id> <media-id>",
		Short: "Show a local media item in the block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			mediaID, err := parseMediaID(args[1])
			if err != nil {
				return err
			}
			change := featuredsync.AttributeChange{ID: featuredsync.SomeID(mediaID)}
			if imageURL != "" {
				change.URL = &imageURL
			}
			return setAttributes(cmd, id, change, wait)
		},
	}
	setImage.Flags().StringVar(&imageURL, "url", "", "image URL")

	setURL := &cobra.Command{
		Use:   "set-url <block-id> <url>",
		Short: "Show an external image URL in the block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			url := args[1]
			return setAttributes(cmd, id, featuredsync.AttributeChange{ID: featuredsync.UndefinedID(), URL: &url}, wait)
		},
	}

	caption := &cobra.Command{
		Use:   "caption <block-id> <text>",
		Short: "Set the caption of the block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			text := args[1]
			return setAttributes(cmd, id, featuredsync.AttributeChange{Caption: &text}, wait)
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <block-id>",
		Short: "Flip the sync toggle of the block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			block, err := clientFromFlags(cmd).ToggleSync(cmd.Context(), id, wait)
			if err != nil {
				return fmt.Errorf("toggle sync failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), block)
		},
	}

	state := &cobra.Command{
		Use:   "state <block-id>",
		Short: "Show the sync state of the block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUUID(args[0], "block")
			if err != nil {
				return err
			}
			info, err := clientFromFlags(cmd).GetSyncState(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get sync state failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Eligible: %t\n", info.Eligible)
			fmt.Fprintf(out, "Synchronized: %t\n", info.Status.ShouldSync)
			fmt.Fprintf(out, "Locked: %t\n", info.Status.Locked)
			if info.Status.HelpText != "" {
				fmt.Fprintf(out, "%s\n", info.Status.HelpText)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{setImage, setURL, caption, toggle} {
		c.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the featured image update to be acknowledged")
	}

	cmd.AddCommand(create, get, setImage, setURL, caption, toggle, state)
	return cmd
}

func setAttributes(cmd *cobra.Command, id uuid.UUID, change featuredsync.AttributeChange, wait bool) error {
	block, err := clientFromFlags(cmd).SetAttributes(cmd.Context(), id, change, wait)
	if err != nil {
		return fmt.Errorf("set attributes failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), block)
}

func parseUUID(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID: %s", label, raw)
	}
	return id, nil
}

func parseMediaID(raw string) (featuredsync.MediaID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid media ID: %s", raw)
	}
	return featuredsync.MediaID(id), nil
}
