package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name            string      `yaml:"name"`
	Description     string      `yaml:"description"`
	Price           string      `yaml:"price"`
	DiscountedPrice string      `yaml:"discounted_price"`
	Category        string      `yaml:"category"`
	Stock           int         `yaml:"stock"`
	Images          []seedImage `yaml:"images"`
}

type seedImage struct {
	URL string `yaml:"url"`
	Alt string `yaml:"alt"`
}

func main() {
	path := "seeds/products.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Read seed file: %v", err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		log.Fatalf("Parse seed file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	for _, p := range seeds.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			log.Fatalf("Product %q: invalid price %q", p.Name, p.Price)
		}

		input := store.ProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       price,
			Category:    p.Category,
			Stock:       p.Stock,
		}
		if p.DiscountedPrice != "" {
			discounted, err := decimal.NewFromString(p.DiscountedPrice)
			if err != nil {
				log.Fatalf("Product %q: invalid discounted_price %q", p.Name, p.DiscountedPrice)
			}
			input.DiscountedPrice = &discounted
		}
		for _, img := range p.Images {
			input.Images = append(input.Images, models.ProductImage{URL: img.URL, Alt: img.Alt})
		}

		product, err := store.CreateProduct(ctx, db, input)
		if err != nil {
			log.Fatalf("Seed product %q: %v", p.Name, err)
		}
		log.Printf("Seeded product %d: %s", product.ID, product.Name)
	}

	log.Printf("Seeded %d product(s)", len(seeds.Products))
}
