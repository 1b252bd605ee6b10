package mcpserver

// FormatContract describes the outline format that LLM consumers should
// follow when creating or editing task documents.
const FormatContract = `# Tasklint Outline Format Contract

Every task document (` + "`.org`" + `) checked by tasklint follows this structure.

## Structure

` + "```" + `org
#+TITLE: Home projects

* PROJECT Renovate kitchen [1/3]                           :home:
SCHEDULED: <2025-03-01 Sat>
:PROPERTIES:
:TASK_ID: 20250215093012
:CREATED: [2025-02-15 Sat 09:30]
:ZK_NOTE: [[zk:20250210181500]]
:END:
** NEXT Call the plumber
SCHEDULED: <2025-02-20 Thu>
:PROPERTIES:
:TASK_ID: 20250215093012a
:END:
** WAITING Quote from carpenter
DEADLINE: <2025-02-28 Fri>
* RECURRING Water plants
SCHEDULED: <2025-02-16 Sun +1w>
` + "```" + `

## Rules

1. **Headings** start with one or more ` + "`*`" + ` followed by a space. The level is
   the number of stars.
2. **State keyword** is the first uppercase word of the title. Allowed states
   are configured (default: TODO, NEXT, WAITING, PROJECT, SOMEDAY, RECURRING,
   DONE, CANCELLED, INBOX). Unknown states are reported.
3. **Tags** are a trailing ` + "`:tag1:tag2:`" + ` block separated from the title by
   whitespace. Tags contain only letters, digits, ` + "`_`" + ` and ` + "`@`" + `.
4. **Scheduling lines** (` + "`SCHEDULED: <...>`" + `, ` + "`DEADLINE: <...>`" + `) come directly
   after the heading and BEFORE the drawer. At most one of each per heading.
   Repeat intervals go inside the brackets: ` + "`+1w`" + `, ` + "`++2d`" + `, ` + "`.+1m`" + `.
5. **One drawer per heading**, opened by ` + "`:PROPERTIES:`" + ` and closed by ` + "`:END:`" + `.
   Property keys are unique within a drawer; the first occurrence wins.
6. **TASK_ID** is a 14-digit UTC timestamp (` + "`YYYYMMDDHHMMSS`" + `) with an optional
   lowercase suffix (` + "`a`" + `, ` + "`b`" + `, ..., ` + "`aa`" + `). It is unique across all documents
   and never changes once written. Use the generate_id or ensure_id tools
   instead of inventing one.
7. **ZK_NOTE** links a heading to a Zettelkasten note as ` + "`[[zk:<identifier>]]`" + `.
   The older inline form ` + "`ID:: [[zk:...]]`" + ` is deprecated; the fixer moves it
   into the drawer.
8. **CREATED** uses the bracketed form ` + "`[YYYY-MM-DD Ddd]`" + ` or
   ` + "`[YYYY-MM-DD Ddd HH:MM]`" + `.

## Workflow rules

- PROJECT headings carry a progress cookie such as ` + "`[2/5]`" + `.
- NEXT headings without a scheduling line produce an informational finding.
- WAITING headings need a SCHEDULED/DEADLINE follow-up or a WAITING_ON
  or FOLLOW_UP property.
- RECURRING headings (or titles containing ` + "`(recurring)`" + `) need a repeat
  interval on their SCHEDULED line.

## Repairs

The fixer (fix_document tool) is idempotent. It relocates misplaced
scheduling lines, merges duplicate drawers, drops duplicate properties and
scheduling lines, converts legacy identifiers, and normalizes CREATED values.
Run it with preview=true first to inspect the changes; a real run writes a
timestamped ` + "`.bak`" + ` copy next to the document before replacing it.
`
