package nextcloud

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
)

const propfindBody = `<?xml version="1.0" encoding="UTF-8"?>
<d:propfind xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns" xmlns:nc="http://nextcloud.org/ns">
  <d:prop>` + propList + `</d:prop>
</d:propfind>`

const propList = `
    <d:getlastmodified/>
    <d:getetag/>
    <d:getcontenttype/>
    <d:getcontentlength/>
    <d:resourcetype/>
    <oc:fileid/>
    <oc:permissions/>
    <oc:size/>
    <oc:favorite/>
    <oc:owner-id/>
  `

const searchBodyTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<d:searchrequest xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns" xmlns:nc="http://nextcloud.org/ns">
  <d:basicsearch>
    <d:select><d:prop>` + propList + `</d:prop></d:select>
    <d:from>
      <d:scope>
        <d:href>/files/%s</d:href>
        <d:depth>infinity</d:depth>
      </d:scope>
    </d:from>
    <d:where>
      <d:eq>
        <d:prop><oc:fileid/></d:prop>
        <d:literal>%s</d:literal>
      </d:eq>
    </d:where>
  </d:basicsearch>
</d:searchrequest>`

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type prop struct {
	LastModified  string       `xml:"DAV: getlastmodified"`
	ETag          string       `xml:"DAV: getetag"`
	ContentType   string       `xml:"DAV: getcontenttype"`
	ContentLength string       `xml:"DAV: getcontentlength"`
	ResourceType  resourceType `xml:"DAV: resourcetype"`
	FileID        string       `xml:"http://owncloud.org/ns fileid"`
	Permissions   string       `xml:"http://owncloud.org/ns permissions"`
	Size          string       `xml:"http://owncloud.org/ns size"`
	Favorite      string       `xml:"http://owncloud.org/ns favorite"`
	OwnerID       string       `xml:"http://owncloud.org/ns owner-id"`
}

type resourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
}

func searchBody(username, fileID string) string {
	return fmt.Sprintf(searchBodyTemplate, escapeXML(username), escapeXML(fileID))
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func decodeMultistatus(r io.Reader) (*multistatus, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}
	return &ms, nil
}

// mergedProp folds all successful propstats of a response into one prop.
func (r response) mergedProp() prop {
	var out prop
	for _, ps := range r.Propstats {
		if ps.Status != "" && !strings.Contains(ps.Status, " 200") {
			continue
		}
		p := ps.Prop
		if p.LastModified != "" {
			out.LastModified = p.LastModified
		}
		if p.ETag != "" {
			out.ETag = p.ETag
		}
		if p.ContentType != "" {
			out.ContentType = p.ContentType
		}
		if p.ContentLength != "" {
			out.ContentLength = p.ContentLength
		}
		if p.ResourceType.Collection != nil {
			out.ResourceType.Collection = p.ResourceType.Collection
		}
		if p.FileID != "" {
			out.FileID = p.FileID
		}
		if p.Permissions != "" {
			out.Permissions = p.Permissions
		}
		if p.Size != "" {
			out.Size = p.Size
		}
		if p.Favorite != "" {
			out.Favorite = p.Favorite
		}
		if p.OwnerID != "" {
			out.OwnerID = p.OwnerID
		}
	}
	return out
}

// toNode converts a multistatus response into a node. root is the unescaped
// path prefix of the user's files collection, ending with "/".
func (r response) toNode(root string) (models.FsNode, error) {
	href := r.Href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		href = u.Path
	} else if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if !strings.HasPrefix(href, root) && href+"/" != root {
		return models.FsNode{}, fmt.Errorf("href %q outside of %q", r.Href, root)
	}
	userPath := strings.TrimPrefix(href, root)
	if href+"/" == root {
		userPath = ""
	}

	p := r.mergedProp()
	node := models.FsNode{
		FileID:      p.FileID,
		UserPath:    userPath,
		IsDir:       p.ResourceType.Collection != nil,
		Permissions: p.Permissions,
		MimeType:    p.ContentType,
		Favorite:    p.Favorite == "1",
		Owner:       p.OwnerID,
		ETag:        strings.Trim(p.ETag, `"`),
	}
	if node.IsDir && node.UserPath != "" && !strings.HasSuffix(node.UserPath, "/") {
		node.UserPath += "/"
	}
	node.Name = path.Base(strings.TrimSuffix(node.UserPath, "/"))
	if node.UserPath == "" {
		node.Name = ""
	}

	size := p.ContentLength
	if node.IsDir || size == "" {
		size = p.Size
	}
	if size != "" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return models.FsNode{}, fmt.Errorf("size of %q: %w", userPath, err)
		}
		node.Size = n
	}
	if p.LastModified != "" {
		if t, err := http.ParseTime(p.LastModified); err == nil {
			node.LastModified = t
		}
	}
	return node, nil
}
