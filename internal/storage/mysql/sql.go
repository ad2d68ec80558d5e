package mysql

const upsertCompanySQL = `
INSERT INTO companies (place_id, name, url)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  name       = VALUES(name),
  url        = COALESCE(VALUES(url), companies.url),
  updated_at = CURRENT_TIMESTAMP
`

const getCompanySQL = `
SELECT place_id, name, url, is_our_company, services, created_at
FROM companies
WHERE place_id = ?
`

const listCompaniesSQL = `
SELECT place_id, name, url, is_our_company, services, created_at
FROM companies
ORDER BY name ASC
`

// COALESCE keeps the stored value when the caller leaves a field out of the
// patch.
const updateCompanySQL = `
UPDATE companies
SET name       = COALESCE(?, name),
    url        = COALESCE(?, url),
    services   = COALESCE(?, services),
    updated_at = CURRENT_TIMESTAMP
WHERE place_id = ?
`

const clearOurCompanySQL = `UPDATE companies SET is_our_company = 0 WHERE is_our_company = 1`

const setOurCompanySQL = `UPDATE companies SET is_our_company = 1 WHERE place_id = ?`

const ourCompanySQL = `
SELECT place_id, name, url, is_our_company, services, created_at
FROM companies
WHERE is_our_company = 1
`

const insertReviewsPrefix = "INSERT INTO reviews\n" +
	"  (review_id, place_id, author, rating, `text`, review_date, has_response, scraped_at)\nVALUES "

// Reviews are immutable: a concurrent insert of the same review_id wins and
// the late row is dropped, never rewritten.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE review_id = reviews.review_id"

const listReviewsSQL = `
SELECT review_id, place_id, author, rating, ` + "`text`" + `, review_date, has_response, scraped_at
FROM reviews
WHERE place_id = ?
ORDER BY scraped_at DESC, review_id DESC
`

const upsertMetadataSQL = `
INSERT INTO review_metadata (place_id, total_reviews, scraped_reviews, calculated_avg, last_scraped)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  total_reviews   = VALUES(total_reviews),
  scraped_reviews = VALUES(scraped_reviews),
  calculated_avg  = VALUES(calculated_avg),
  last_scraped    = VALUES(last_scraped)
`

const getMetadataSQL = `
SELECT place_id, total_reviews, scraped_reviews, calculated_avg, last_scraped
FROM review_metadata
WHERE place_id = ?
`

const insertGroupSQL = `INSERT INTO company_groups (name, company_ids) VALUES (?, ?)`

const getGroupSQL = `
SELECT id, name, company_ids, created_at
FROM company_groups
WHERE id = ?
`

const listGroupsSQL = `
SELECT id, name, company_ids, created_at
FROM company_groups
ORDER BY created_at DESC, id DESC
`

const updateGroupSQL = `
UPDATE company_groups
SET name        = COALESCE(?, name),
    company_ids = COALESCE(?, company_ids)
WHERE id = ?
`

const deleteGroupSQL = `DELETE FROM company_groups WHERE id = ?`

const insertSnapshotSQL = `
INSERT INTO comparison_snapshots (id, name, rankings, created_at)
VALUES (?, ?, ?, ?)
`

const getSnapshotSQL = `
SELECT id, name, rankings, created_at
FROM comparison_snapshots
WHERE id = ?
`

const listSnapshotsSQL = `
SELECT id, name, created_at
FROM comparison_snapshots
ORDER BY created_at DESC, id DESC
`
