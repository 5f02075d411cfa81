package figma

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/scene"
)

// FetchDocument returns the document root with every page's full tree.
// Pages come from a shallow /files call; the trees come from batched /nodes calls.
// A page the /nodes call did not return stays in the document without children.
func (c *Client) FetchDocument(ctx context.Context, token, fileKey string) (*models.SceneNode, error) {
	var file fileResponse
	params := url.Values{}
	params.Set("depth", "1")
	if err := c.getJSON(ctx, token, "/files/"+url.PathEscape(fileKey), params, &file); err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", fileKey, err)
	}
	if file.Document == nil {
		return &models.SceneNode{ID: "0:0", Type: "DOCUMENT", Name: file.Name}, nil
	}

	pages := file.Document.Pages()
	if len(pages) == 0 {
		return file.Document, nil
	}

	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID)
	}

	trees, err := c.GetNodes(ctx, token, fileKey, ids)
	if err != nil && len(trees) == 0 {
		return nil, fmt.Errorf("failed to fetch page trees for %s: %w", fileKey, err)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("file_key", fileKey).Msg("Some page trees could not be fetched")
	}

	for i, child := range file.Document.Children {
		if child.Kind() != models.KindPage {
			continue
		}
		if tree, ok := trees[child.ID]; ok && tree != nil {
			file.Document.Children[i] = tree
		}
	}

	c.logger.Info().
		Str("file_key", fileKey).
		Int("pages", len(pages)).
		Int("pages_resolved", len(trees)).
		Msg("Design document fetched")

	return file.Document, nil
}

// ListPages returns the pages of a file without their trees
func (c *Client) ListPages(ctx context.Context, token, fileKey string) ([]Page, error) {
	var file fileResponse
	params := url.Values{}
	params.Set("depth", "1")
	if err := c.getJSON(ctx, token, "/files/"+url.PathEscape(fileKey), params, &file); err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", fileKey, err)
	}
	pages := []Page{}
	for _, p := range file.Document.Pages() {
		name := p.Name
		if name == "" {
			name = "Untitled Page"
		}
		pages = append(pages, Page{ID: p.ID, Name: name})
	}
	return pages, nil
}

// ListFrames fetches the document and returns every frame in it, nested ones
// included, in page then depth-first order
func (c *Client) ListFrames(ctx context.Context, token, fileKey string) ([]models.FrameRef, *models.SceneNode, error) {
	doc, err := c.FetchDocument(ctx, token, fileKey)
	if err != nil {
		return nil, nil, err
	}
	return scene.ListDocumentFrames(doc), doc, nil
}

// GetNodes returns the subtree of every requested node id that the API resolved.
// When some batches fail the merged result of the others is returned together
// with a *models.PartialFetchError; when all fail only the error is returned.
func (c *Client) GetNodes(ctx context.Context, token, fileKey string, ids []string) (map[string]*models.SceneNode, error) {
	path := "/files/" + url.PathEscape(fileKey) + "/nodes"

	results, err := fetchBatches(ctx, c, "nodes", ids, c.nodeBatchSize, func(ctx context.Context, batch []string) (map[string]*models.SceneNode, error) {
		params := url.Values{}
		params.Set("ids", strings.Join(batch, ","))
		var resp nodesResponse
		if err := c.getJSON(ctx, token, path, params, &resp); err != nil {
			return nil, err
		}
		out := make(map[string]*models.SceneNode, len(resp.Nodes))
		for id, node := range resp.Nodes {
			if node != nil && node.Document != nil {
				out[id] = node.Document
			}
		}
		return out, nil
	})

	c.logger.Info().
		Int("requested", len(ids)).
		Int("fetched", len(results)).
		Msg("Node details fetched")
	return results, err
}

// GetImages renders the given nodes as jpg at scale and returns node id -> url.
// Nodes the API could not render are absent from the result. Partial failure
// follows GetNodes.
func (c *Client) GetImages(ctx context.Context, token, fileKey string, ids []string, scale float64) (map[string]string, error) {
	if scale <= 0 {
		scale = 2
	}
	path := "/images/" + url.PathEscape(fileKey)

	results, err := fetchBatches(ctx, c, "images", ids, c.imageBatchSize, func(ctx context.Context, batch []string) (map[string]string, error) {
		params := url.Values{}
		params.Set("ids", strings.Join(batch, ","))
		params.Set("format", "jpg")
		params.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))
		var resp imagesResponse
		if err := c.getJSON(ctx, token, path, params, &resp); err != nil {
			return nil, err
		}
		if resp.Err != nil && *resp.Err != "" && len(resp.Images) == 0 {
			return nil, fmt.Errorf("image render failed: %s", *resp.Err)
		}
		out := make(map[string]string, len(resp.Images))
		for id, u := range resp.Images {
			if u != nil && *u != "" {
				out[id] = *u
			}
		}
		return out, nil
	})

	c.logger.Info().
		Int("requested", len(ids)).
		Int("resolved", len(results)).
		Msg("Images resolved")
	return results, err
}

// Chunk splits ids into consecutive batches of at most size
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// fetchBatches runs fetch for every batch with bounded concurrency and merges
// the results in batch order; the first value seen for an id wins.
func fetchBatches[V any](ctx context.Context, c *Client, kind string, ids []string, size int, fetch func(context.Context, []string) (map[string]V, error)) (map[string]V, error) {
	merged := map[string]V{}
	batches := Chunk(ids, size)
	if len(batches) == 0 {
		return merged, nil
	}

	parts := make([]map[string]V, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			part, err := fetch(gctx, batch)
			if err != nil {
				// batch failures are collected, not propagated, so siblings keep running
				errs[i] = err
				c.logger.Warn().
					Str("kind", kind).
					Int("batch", i+1).
					Int("size", len(batch)).
					Err(err).
					Msg("Batch fetch failed")
				return nil
			}
			parts[i] = part
			return nil
		})
	}
	_ = g.Wait()

	var failures []string
	for i, part := range parts {
		if errs[i] != nil {
			failures = append(failures, fmt.Sprintf("%s batch %d/%d: %v", kind, i+1, len(batches), errs[i]))
			continue
		}
		for id, v := range part {
			if _, exists := merged[id]; !exists {
				merged[id] = v
			}
		}
	}

	if len(failures) == len(batches) {
		return nil, fmt.Errorf("all %d %s batches failed: %w", len(batches), kind, firstError(errs))
	}
	if len(failures) > 0 {
		return merged, &models.PartialFetchError{Errors: failures}
	}
	return merged, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
