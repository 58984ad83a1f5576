package complaint

import (
	"strings"

	"github.com/civiciq/civiciq/internal/domain"
)

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(s scanner) (domain.Complaint, error) {
	var c domain.Complaint
	if err := scanComplaintInto(s, &c); err != nil {
		return domain.Complaint{}, err
	}
	return c, nil
}

// scanComplaintInto scans the complaintColumns set (plus any extra columns)
// into a Complaint. duplicate_of NULL maps to the empty string.
func scanComplaintInto(s scanner, c *domain.Complaint, extra ...any) error {
	var severity, status string
	var duplicateOf *string

	dest := []any{
		&c.ID, &c.UserID, &c.Title, &c.Description, &c.Category, &severity, &c.PriorityScore,
		&c.Location, &status, &c.ImageURL, &c.Summary, &c.Keywords, &c.IsDuplicate, &duplicateOf,
		&c.CreatedAt, &c.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := s.Scan(dest...); err != nil {
		return err
	}

	c.Severity = domain.Severity(severity)
	c.Status = domain.Status(status)
	if duplicateOf != nil {
		c.DuplicateOf = *duplicateOf
	}
	return nil
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias for join queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
