package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/format"
)

// decodeCatalog reads the seed catalog: an array of products with
// optional slug, image and variants. Missing slugs are derived from the
// name and missing images from the slug.
func decodeCatalog(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := decodeProduct(d, &p); err != nil {
			return err
		}
		if p.ID == "" {
			return errors.Errorf("product %d: id is required", len(products))
		}
		if p.Slug == "" {
			p.Slug = format.Slug(p.Name)
		}
		if p.Image == (product.Image{}) {
			p.Image = defaultImage(p.Slug)
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}

func defaultImage(slug string) product.Image {
	base := "/images/" + slug + "/"
	return product.Image{
		Thumbnail: base + "thumbnail.jpg",
		Mobile:    base + "mobile.jpg",
		Tablet:    base + "tablet.jpg",
		Desktop:   base + "desktop.jpg",
	}
}

func decodeProduct(d *jx.Decoder, p *product.Product) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "slug":
			p.Slug, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = cart.DecodeAmount(d)
		case "category":
			p.Category, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "image":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "thumbnail":
					p.Image.Thumbnail, err = d.Str()
				case "mobile":
					p.Image.Mobile, err = d.Str()
				case "tablet":
					p.Image.Tablet, err = d.Str()
				case "desktop":
					p.Image.Desktop, err = d.Str()
				default:
					return d.Skip()
				}
				return err
			})
		case "variants":
			err = d.Arr(func(d *jx.Decoder) error {
				var v product.Variant
				if err := decodeVariant(d, &v); err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func decodeVariant(d *jx.Decoder, v *product.Variant) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = d.Str()
		case "name":
			v.Name, err = d.Str()
		case "price":
			v.Price, err = cart.DecodeAmount(d)
		case "stock":
			v.Stock, err = d.Int()
		case "attributes":
			v.Attributes = make(map[string]string)
			err = d.Obj(func(d *jx.Decoder, key string) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				v.Attributes[key] = s
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}
