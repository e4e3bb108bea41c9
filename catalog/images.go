package catalog

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// NormalizePrimary returns a copy of images in which exactly one image is
// primary: the first one already marked, or the first image when none is.
func NormalizePrimary(images []Image) []Image {
	if len(images) == 0 {
		return nil
	}
	out := append([]Image(nil), images...)
	primary := 0
	for i, img := range out {
		if img.Primary {
			primary = i
			break
		}
	}
	for i := range out {
		out[i].Primary = i == primary
	}
	return out
}

// AddImage appends img and renormalizes. The first image of an empty list
// becomes primary; a new image marked primary takes over from the old one.
func AddImage(images []Image, img Image) []Image {
	if img.Primary {
		out := make([]Image, 0, len(images)+1)
		for _, existing := range images {
			existing.Primary = false
			out = append(out, existing)
		}
		return NormalizePrimary(append(out, img))
	}
	return NormalizePrimary(append(append([]Image(nil), images...), img))
}

// RemoveImage drops the image at idx. Out-of-range indexes leave the list unchanged.
func RemoveImage(images []Image, idx int) []Image {
	if idx < 0 || idx >= len(images) {
		return NormalizePrimary(images)
	}
	out := make([]Image, 0, len(images)-1)
	out = append(out, images[:idx]...)
	out = append(out, images[idx+1:]...)
	return NormalizePrimary(out)
}

// SetPrimary marks the image at idx as the only primary image.
func SetPrimary(images []Image, idx int) []Image {
	if idx < 0 || idx >= len(images) {
		return NormalizePrimary(images)
	}
	out := append([]Image(nil), images...)
	for i := range out {
		out[i].Primary = i == idx
	}
	return out
}

// PrimaryImage returns the primary image, falling back to the first one.
func PrimaryImage(images []Image) (Image, bool) {
	for _, img := range images {
		if img.Primary {
			return img, true
		}
	}
	if len(images) > 0 {
		return images[0], true
	}
	return Image{}, false
}

// LocalImages returns the images still pending promotion.
func LocalImages(images []Image) []Image {
	var out []Image
	for _, img := range images {
		if img.IsLocal() {
			out = append(out, img)
		}
	}
	return out
}

// RemoteImages returns images with every local image removed, renormalized.
func RemoteImages(images []Image) []Image {
	var out []Image
	for _, img := range images {
		if !img.IsLocal() {
			out = append(out, img)
		}
	}
	return NormalizePrimary(out)
}

// StripLocalImages returns copies of objects without their local images.
func StripLocalImages(objects []Object) []Object {
	out := make([]Object, len(objects))
	for i, o := range objects {
		c := o.Clone()
		c.Images = RemoteImages(c.Images)
		out[i] = c
	}
	return out
}

// MergeLocalImages appends the side-cached local images of each object that
// are not already attached (matched by url) and renormalizes the primary flag.
// Merging the same map twice yields the same result as merging it once.
func MergeLocalImages(objects []Object, local map[string][]Image) []Object {
	out := make([]Object, len(objects))
	for i, o := range objects {
		c := o.Clone()
		pending := local[c.ID]
		if len(pending) > 0 {
			seen := make(map[string]struct{}, len(c.Images))
			for _, img := range c.Images {
				seen[img.URL] = struct{}{}
			}
			for _, img := range pending {
				if _, ok := seen[img.URL]; ok {
					continue
				}
				seen[img.URL] = struct{}{}
				img.State = ImageLocal
				img.Primary = img.Primary && !hasPrimary(c.Images)
				c.Images = append(c.Images, img)
			}
		}
		c.Images = NormalizePrimary(c.Images)
		out[i] = c
	}
	return out
}

func hasPrimary(images []Image) bool {
	for _, img := range images {
		if img.Primary {
			return true
		}
	}
	return false
}

const dataURIPrefix = "data:"

// EncodeDataURI embeds data as a base64 data URI.
func EncodeDataURI(mimeType string, data []byte) string {
	return dataURIPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DataURILen is the length of the data URI EncodeDataURI would produce.
func DataURILen(mimeType string, n int) int {
	return len(dataURIPrefix) + len(mimeType) + len(";base64,") + base64.StdEncoding.EncodedLen(n)
}

// DecodeDataURI splits a base64 data URI into its MIME type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrMalformedDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrMalformedDataURI)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: not base64 encoded", ErrMalformedDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrMalformedDataURI)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType, data, nil
}
