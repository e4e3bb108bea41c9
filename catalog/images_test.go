package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func primaryCount(images []Image) int {
	n := 0
	for _, img := range images {
		if img.Primary {
			n++
		}
	}
	return n
}

func TestAddImageFirstBecomesPrimary(t *testing.T) {
	images := AddImage(nil, Image{URL: "a.jpg"})
	require.Len(t, images, 1)
	assert.True(t, images[0].Primary)

	images = AddImage(images, Image{URL: "b.jpg"})
	assert.True(t, images[0].Primary)
	assert.False(t, images[1].Primary)

	images = AddImage(images, Image{URL: "c.jpg", Primary: true})
	assert.Equal(t, 1, primaryCount(images))
	assert.True(t, images[2].Primary)
}

func TestRemoveImagePromotesFirst(t *testing.T) {
	images := []Image{
		{URL: "a.jpg", Primary: true},
		{URL: "b.jpg"},
		{URL: "c.jpg"},
	}
	images = RemoveImage(images, 0)
	require.Len(t, images, 2)
	assert.Equal(t, "b.jpg", images[0].URL)
	assert.True(t, images[0].Primary)
	assert.Equal(t, 1, primaryCount(images))

	assert.Len(t, RemoveImage(images, 7), 2)
	assert.Empty(t, RemoveImage([]Image{{URL: "x"}}, 0))
}

func TestSetPrimary(t *testing.T) {
	images := []Image{{URL: "a.jpg", Primary: true}, {URL: "b.jpg"}}
	images = SetPrimary(images, 1)
	assert.False(t, images[0].Primary)
	assert.True(t, images[1].Primary)
}

func TestNormalizePrimaryKeepsFirstMarked(t *testing.T) {
	images := NormalizePrimary([]Image{{URL: "a"}, {URL: "b", Primary: true}, {URL: "c", Primary: true}})
	assert.Equal(t, []bool{false, true, false}, []bool{images[0].Primary, images[1].Primary, images[2].Primary})
	assert.Nil(t, NormalizePrimary(nil))
}

func TestMergeLocalImagesIsIdempotent(t *testing.T) {
	objects := []Object{
		{ID: "1", Title: "Beam", Images: []Image{{URL: "https://x/1.jpg"}}},
		{ID: "2", Title: "Lantern"},
	}
	local := map[string][]Image{
		"1": {{URL: "data:image/jpeg;base64,AAAA", State: ImageLocal, Primary: true}},
		"2": {{URL: "data:image/jpeg;base64,BBBB", State: ImageLocal}},
		"9": {{URL: "data:image/jpeg;base64,CCCC", State: ImageLocal}},
	}

	once := MergeLocalImages(objects, local)
	twice := MergeLocalImages(once, local)
	assert.Equal(t, once, twice)

	require.Len(t, once[0].Images, 2)
	assert.True(t, once[0].Images[0].Primary, "remote primary is kept")
	assert.False(t, once[0].Images[1].Primary)
	assert.Equal(t, ImageLocal, once[0].Images[1].State)

	require.Len(t, once[1].Images, 1)
	assert.True(t, once[1].Images[0].Primary, "lone local image is promoted")

	assert.Len(t, objects[0].Images, 1, "input is not mutated")
	for _, o := range twice {
		assert.Equal(t, 1, primaryCount(o.Images))
	}
}

func TestStripLocalImages(t *testing.T) {
	objects := []Object{{ID: "1", Images: []Image{
		{URL: "data:image/jpeg;base64,AAAA", State: ImageLocal, Primary: true},
		{URL: "https://x/2.jpg"},
	}}}
	stripped := StripLocalImages(objects)
	require.Len(t, stripped[0].Images, 1)
	assert.Equal(t, "https://x/2.jpg", stripped[0].Images[0].URL)
	assert.True(t, stripped[0].Images[0].Primary)
	assert.Len(t, objects[0].Images, 2)
}

func TestDataURI(t *testing.T) {
	uri := EncodeDataURI("image/jpeg", []byte{0xff, 0xd8, 0xff})
	assert.Equal(t, len(uri), DataURILen("image/jpeg", 3))

	mimeType, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	for _, bad := range []string{
		"https://example.com/a.jpg",
		"data:image/jpeg;base64",
		"data:image/jpeg,AAAA",
		"data:image/jpeg;base64,!!!",
		"data:image/jpeg;base64,",
	} {
		_, _, err := DecodeDataURI(bad)
		assert.ErrorIs(t, err, ErrMalformedDataURI, bad)
	}
}

func TestImageJSONKeepsWireShape(t *testing.T) {
	b, err := Image{URL: "u", Caption: "c", Primary: true, State: ImageLocal}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"u","caption":"c","isPrimary":true,"isLocal":true}`, string(b))

	var img Image
	require.NoError(t, img.UnmarshalJSON([]byte(`{"url":"u","caption":"c","isPrimary":false}`)))
	assert.Equal(t, ImageRemote, img.State)
}
