// Package domain holds the normalized rows written by translators.
//
// Every row type implements ir.Row. Foreign references to names and items are
// stored as link ids (name_link_id, item_link_id); readers join through the
// link tables to reach the canonical entity, so a merge never has to rewrite
// the rows that reference the merged entity.
package domain
