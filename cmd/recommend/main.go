package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/ai-shopmate/backend/internal/catalog"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/recommend"
)

type options struct {
	catalogPath string
	productID   string
	index       int
	limit       int
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print related products for a catalog item",
		Long: `Loads a product catalog (json, yaml or xlsx) and prints the products
that share the most tags and the category with the chosen item.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "data/products.json", "path to the catalog file")
	cmd.Flags().StringVar(&opts.productID, "product", "", "id of the reference product")
	cmd.Flags().IntVar(&opts.index, "index", 0, "position of the reference product in the catalog, used when --product is empty")
	cmd.Flags().IntVar(&opts.limit, "limit", recommend.MaxResults, "number of recommendations, at most 4")

	return cmd
}

func run(out io.Writer, opts options) error {
	products, err := catalog.Load(opts.catalogPath)
	if err != nil {
		return err
	}

	reference, err := pickReference(products, opts)
	if err != nil {
		return err
	}

	results := recommend.RecommendN(&reference, products, opts.limit)

	fmt.Fprintf(out, "Recommendations for %q:\n", reference.Name)
	if len(results) == 0 {
		fmt.Fprintln(out, "No related products found.")
		return nil
	}
	for i, result := range results {
		fmt.Fprintf(out, "%d. %s (Score: %d)\n", i+1, result.Name, result.Relevance)
	}

	return nil
}

func pickReference(products []models.Product, opts options) (models.Product, error) {
	if opts.productID != "" {
		for _, p := range products {
			if p.ID == opts.productID {
				return p, nil
			}
		}
		return models.Product{}, fmt.Errorf("product %q not found in catalog", opts.productID)
	}

	if opts.index < 0 || opts.index >= len(products) {
		return models.Product{}, errors.New("index is out of catalog range")
	}

	return products[opts.index], nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
