package posts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/images"
)

const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
	msgNull     = "This field may not be null."
	msgString   = "Not a valid string."
)

// postInput holds the writable fields of a request body.
// A field that was not sent is left unchanged; for group and image a sent null clears it.
type postInput struct {
	text *string

	groupSet bool
	group    *uint

	imageSet bool
	image    *images.Image
}

// bindPostInput reads a JSON or form body. Field problems are collected into fields;
// only an unreadable body is returned as an error.
func bindPostInput(c *gin.Context, requireText bool, fields apierror.FieldErrors) (*postInput, error) {
	var in *postInput
	var err error
	switch c.ContentType() {
	case binding.MIMEMultipartPOSTForm, binding.MIMEPOSTForm:
		in, err = bindForm(c, fields)
	default:
		in, err = bindJSON(c, fields)
	}
	if err != nil {
		return nil, err
	}

	if requireText && in.text == nil && len(fields["text"]) == 0 {
		fields.Add("text", msgRequired)
	}
	return in, nil
}

func bindJSON(c *gin.Context, fields apierror.FieldErrors) (*postInput, error) {
	raw := map[string]json.RawMessage{}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apierror.ErrMalformedBody
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, apierror.ErrMalformedBody
		}
	}

	in := &postInput{}
	if v, ok := raw["text"]; ok {
		var text *string
		if err := json.Unmarshal(v, &text); err != nil {
			fields.Add("text", msgString)
		} else if text == nil {
			fields.Add("text", msgNull)
		} else {
			setText(in, *text, fields)
		}
	}

	if v, ok := raw["group"]; ok {
		in.groupSet = true
		var value interface{}
		_ = json.Unmarshal(v, &value)
		switch g := value.(type) {
		case nil:
		case float64:
			if g <= 0 || g != math.Trunc(g) {
				fields.Add("group", invalidPK(v))
				break
			}
			id := uint(g)
			in.group = &id
		case string:
			setGroup(in, g, fields)
		default:
			fields.Add("group", fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonType(value)))
		}
	}

	if v, ok := raw["image"]; ok {
		in.imageSet = true
		var value interface{}
		_ = json.Unmarshal(v, &value)
		switch s := value.(type) {
		case nil:
		case string:
			setImage(in, s, fields)
		default:
			fields.Add("image", images.MsgNotAFile)
		}
	}

	return in, nil
}

func bindForm(c *gin.Context, fields apierror.FieldErrors) (*postInput, error) {
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		if _, err := c.MultipartForm(); err != nil {
			return nil, apierror.ErrMalformedBody
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, apierror.ErrMalformedBody
	}
	form := c.Request.PostForm

	in := &postInput{}
	if values, ok := form["text"]; ok && len(values) > 0 {
		setText(in, values[0], fields)
	}

	if values, ok := form["group"]; ok && len(values) > 0 {
		in.groupSet = true
		if values[0] != "" {
			setGroup(in, values[0], fields)
		}
	}

	if fh, err := c.FormFile("image"); err == nil {
		in.imageSet = true
		img, err := images.FromUpload(fh)
		if err != nil {
			addImageError(err, fields)
		}
		in.image = img
	} else if values, ok := form["image"]; ok && len(values) > 0 {
		in.imageSet = true
		if values[0] != "" {
			setImage(in, values[0], fields)
		}
	}

	return in, nil
}

func setText(in *postInput, text string, fields apierror.FieldErrors) {
	text = strings.TrimSpace(text)
	if text == "" {
		fields.Add("text", msgBlank)
		return
	}
	in.text = &text
}

func setGroup(in *postInput, raw string, fields apierror.FieldErrors) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fields.Add("group", fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", raw))
		return
	}
	gid := uint(id)
	in.group = &gid
}

func setImage(in *postInput, raw string, fields apierror.FieldErrors) {
	img, err := images.DecodeInline(raw)
	if err != nil {
		addImageError(err, fields)
		return
	}
	in.image = img
}

func addImageError(err error, fields apierror.FieldErrors) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		for _, msg := range apiErr.Fields["image"] {
			fields.Add("image", msg)
		}
		return
	}
	fields.Add("image", images.MsgInvalidImage)
}

func invalidPK(raw json.RawMessage) string {
	return fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", string(raw))
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case bool:
		return "bool"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}
