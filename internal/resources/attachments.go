package resources

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

var attachmentSchema = search.Schema{
	"ticket_id":    search.Int,
	"filename":     search.String,
	"content_type": search.String,
}

func validPayload(value interface{}) (interface{}, error) {
	if _, ok := value.(string); !ok {
		return nil, types.Validationf("expected base64 encoded string")
	}
	return value, nil
}

// CreateAttachment stores the attachment metadata, then the decoded payload
// in the blob store. If the payload cannot be decoded or written, the
// metadata is removed again and a storage failure is returned.
func (s *Service) CreateAttachment(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := validation.Dictionary(data,
		[]validation.Field{
			{Name: "ticket_id", Validate: existsValidator(ctx, s.tickets, "ticket")},
			{Name: "filename", Validate: validation.StringLength(1, 255)},
			{Name: "content_type", Validate: validation.StringLength(1, 255)},
			{Name: "attachment_data", Validate: validPayload},
		},
		nil, nil, s.timestamp())
	if err != nil {
		return 0, s.rejected(ctx, entityAttachment, err)
	}

	encoded := fields["attachment_data"].(string)
	delete(fields, "attachment_data")

	id, err := s.attachments.Insert(ctx, fields)
	if err != nil {
		return 0, err
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, s.rollback(ctx, id, types.StorageFailure("Error occured while trying to decode attachment file data", err))
	}
	key := blobstore.AttachmentKey(fields["ticket_id"].(int64), id, fields["filename"].(string))
	if err := s.blobs.Write(ctx, key, payload, fields["content_type"].(string)); err != nil {
		return 0, s.rollback(ctx, id, types.StorageFailure("Error occured while trying to save attachment file data", err))
	}

	s.metrics.Created(entityAttachment)
	s.log.InfoContext(ctx, "entity created", "entity", entityAttachment, "id", id, "key", key, "bytes", len(payload))
	return id, nil
}

// rollback removes the metadata of a failed attachment and returns cause.
func (s *Service) rollback(ctx context.Context, id int64, cause error) error {
	s.metrics.AttachmentRolledBack()
	s.log.WarnContext(ctx, "rolling back attachment", "id", id, "error", cause)
	if err := s.attachments.Remove(ctx, id); err != nil {
		s.log.ErrorContext(ctx, "attachment rollback failed", "id", id, "error", err)
	}
	return cause
}

// AttachmentList is the collection of all attachments.
type AttachmentList struct {
	describe
	svc *Service
}

func newAttachmentList(s *Service) *AttachmentList {
	return &AttachmentList{svc: s, describe: describe{
		template: AttachmentListURL,
		title:    "List of attachments",
		description: `The metadata of all attachments. Nothing is embedded.

POST ` + "`ticket_id`" + `, ` + "`filename`" + `, ` + "`content_type`" + ` and the base64 encoded
` + "`attachment_data`" + ` to attach a file to a ticket. The ticket resource lists
the attachments of a ticket.`,
		schema: attachmentSchema,
	}}
}

// Get lists the attachments matching the request filter.
func (r *AttachmentList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.attachments.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return rawListOf(req.Linker, "attachments", docs, AttachmentURL, AttachmentListURL.Expand()), nil
}

// Create adds an attachment.
func (r *AttachmentList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateAttachment(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.attachment(ctx, req.Linker, id)
	return AttachmentURL.Expand(id), res, err
}

// Attachment is a single attachment with its base64 encoded payload.
// Attachments are never replaced.
type Attachment struct {
	describe
	svc *Service
}

func newAttachment(s *Service) *Attachment {
	return &Attachment{svc: s, describe: describe{
		template: AttachmentURL,
		title:    "Attachment",
		description: `A file attached to a ticket. The payload is returned base64 encoded in
` + "`attachment_data`" + ` and the ticket is embedded.`,
	}}
}

func (s *Service) attachment(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.attachments, id, "attachment '%d' not found!")
	if err != nil {
		return nil, err
	}
	ticketID := int64Field(doc.Fields, "ticket_id")
	filename, _ := doc.Fields["filename"].(string)
	payload, err := s.blobs.Read(ctx, blobstore.AttachmentKey(ticketID, id, filename))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, types.NotFoundf("file for attachment '%d' not found!", id)
	}
	if err != nil {
		return nil, types.StorageFailure("Error occured while trying to read attachment file data", err)
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	res := full(l, doc, AttachmentURL)
	res["attachment_data"] = base64.StdEncoding.EncodeToString(payload)
	if err == nil {
		res["_embedded"] = hal.Object{"ticket": EmbedTicket(l, ticket)}
	}
	res["_links"] = l.Links(map[string]string{
		"self":         AttachmentURL.Expand(id),
		"contained_in": AttachmentListURL.Expand(),
	})
	return res, nil
}

// Get returns the attachment.
func (r *Attachment) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("attachment_id")
	if err != nil {
		return nil, err
	}
	return r.svc.attachment(ctx, req.Linker, id)
}
